package regioncdc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverNotReadyBeforeInit(t *testing.T) {
	var r = NewResolver()
	r.TrackLock(5, []byte("a"))

	var _, ok = r.Resolve(10)
	require.False(t, ok)
}

func TestResolverTrackIsIdempotent(t *testing.T) {
	var r = NewResolver()
	r.Init()
	r.TrackLock(5, []byte("a"))
	r.TrackLock(5, []byte("a"))

	var ts, ok = r.minLockTs()
	require.True(t, ok)
	require.Equal(t, Timestamp(5), ts)
	require.Len(t, r.locksByTs[5], 1)
}

func TestResolverUntrackUnknownIsNoop(t *testing.T) {
	var r = NewResolver()
	r.Init()
	r.UntrackLock(5, []byte("never-tracked")) // must not panic

	var resolved, ok = r.Resolve(100)
	require.True(t, ok)
	require.Equal(t, Timestamp(100), resolved)
}

// TestResolverMonotonicity reproduces spec scenario 6: two tracked locks at
// start_ts 5 and 8; on_min_ts(10) resolves to 5; after untracking 5,
// on_min_ts(12) resolves to 8 (not 10, since 8 is still tracked).
func TestResolverMonotonicity(t *testing.T) {
	var r = NewResolver()
	r.Init()
	r.TrackLock(5, []byte("a"))
	r.TrackLock(8, []byte("b"))

	var resolved, ok = r.Resolve(10)
	require.True(t, ok)
	require.Equal(t, Timestamp(5), resolved)

	r.UntrackLock(5, []byte("a"))

	resolved, ok = r.Resolve(12)
	require.True(t, ok)
	require.Equal(t, Timestamp(8), resolved)
}

func TestResolverNonDecreasingAcrossCalls(t *testing.T) {
	var r = NewResolver()
	r.Init()

	var last Timestamp
	for _, minTs := range []Timestamp{1, 1, 2, 2, 5, 5, 5, 9} {
		if resolved, ok := r.Resolve(minTs); ok {
			require.Greater(t, resolved, last)
			last = resolved
		}
	}
	require.Equal(t, Timestamp(9), last)
}

func TestResolverRetrackUnderNewStartTsRetiresPrior(t *testing.T) {
	var r = NewResolver()
	r.Init()
	r.TrackLock(5, []byte("a"))
	r.TrackLock(9, []byte("a")) // same key, new start_ts (e.g. retried prewrite)

	var resolved, ok = r.Resolve(100)
	require.True(t, ok)
	require.Equal(t, Timestamp(9), resolved)
}
