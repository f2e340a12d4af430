package regioncdc

import (
	"encoding/json"
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/stretchr/testify/require"
)

func TestRowRoundTrip(t *testing.T) {
	var row = Row{
		StartTs:  100,
		CommitTs: 200,
		Key:      []byte("a-key"),
		Value:    []byte("a-value"),
		OpType:   OpType_PUT,
		LogType:  LogType_COMMIT,
	}
	var dAtA, err = row.Marshal()
	require.NoError(t, err)
	require.Equal(t, len(dAtA), row.Size())

	var out Row
	require.NoError(t, out.Unmarshal(dAtA))
	require.Equal(t, row, out)
}

func TestChangeDataEventRoundTrip(t *testing.T) {
	var cde = ChangeDataEvent{
		Events: []Event{
			{
				RegionId: 1,
				Index:    7,
				Entries: &Entries{Rows: []Row{
					{StartTs: 1, Key: []byte("a"), LogType: LogType_PREWRITE},
					{LogType: LogType_INITIALIZED},
				}},
			},
			{
				RegionId:      1,
				Index:         8,
				HasResolvedTs: true,
				ResolvedTs:    42,
			},
			{
				RegionId: 1,
				Index:    9,
				Error: &RegionError{
					EpochNotMatch: &EpochNotMatchError{
						CurrentRegions: []RegionInfo{
							{Id: 10, StartKey: []byte("a"), EndKey: []byte("m")},
							{Id: 11, StartKey: []byte("m"), EndKey: []byte("z")},
						},
					},
				},
			},
			{
				RegionId: 1,
				Index:    10,
				Error:    &RegionError{NotLeader: &NotLeaderError{RegionId: 1}},
			},
		},
	}

	var dAtA, err = cde.Marshal()
	require.NoError(t, err)

	var out ChangeDataEvent
	require.NoError(t, out.Unmarshal(dAtA))
	require.Equal(t, cde, out)
}

func TestSubscribeRequestRoundTrip(t *testing.T) {
	var req = SubscribeRequest{RegionId: 9, ConfVer: 2, Version: 4}
	var dAtA, err = req.Marshal()
	require.NoError(t, err)
	require.Equal(t, len(dAtA), req.Size())

	var out SubscribeRequest
	require.NoError(t, out.Unmarshal(dAtA))
	require.Equal(t, req, out)
}

// TestChangeDataEventSnapshot pins the decoded shape of a representative
// envelope sequence against a cupaloy golden fixture under .snapshots/ (none
// is checked in; cupaloy writes it on the first run and fails that run),
// catching accidental
// field drops or renames in the hand-written codec that a pure round-trip
// test wouldn't notice (round-tripping a bug through itself still matches).
func TestChangeDataEventSnapshot(t *testing.T) {
	var cde = ChangeDataEvent{
		Events: []Event{
			{
				RegionId: 1,
				Index:    7,
				Entries: &Entries{Rows: []Row{
					{StartTs: 100, CommitTs: 200, Key: []byte("a-key"), Value: []byte("a-value"), OpType: OpType_PUT, LogType: LogType_COMMIT},
				}},
			},
			{RegionId: 1, Index: 8, HasResolvedTs: true, ResolvedTs: 42},
		},
	}

	var dAtA, err = cde.Marshal()
	require.NoError(t, err)

	var out ChangeDataEvent
	require.NoError(t, out.Unmarshal(dAtA))

	pretty, err := json.MarshalIndent(out, "", "  ")
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(pretty))
}

func TestRegionErrorVariants(t *testing.T) {
	for _, re := range []*RegionError{
		{NotLeader: &NotLeaderError{RegionId: 5}},
		{RegionNotFound: &RegionNotFoundError{RegionId: 5}},
		{EpochNotMatch: &EpochNotMatchError{}},
	} {
		var dAtA, err = re.Marshal()
		require.NoError(t, err)
		var out RegionError
		require.NoError(t, out.Unmarshal(dAtA))
		require.Equal(t, *re, out)
	}
}
