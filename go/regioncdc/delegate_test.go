package regioncdc

import (
	"testing"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	"github.com/stretchr/testify/require"
)

// fakeSink records every envelope pushed to it, in order.
type fakeSink struct {
	events []pb.ChangeDataEvent
}

func (s *fakeSink) Send(ev *pb.ChangeDataEvent) error {
	s.events = append(s.events, *ev)
	return nil
}

func newTestDownstream(epoch RegionEpoch) (Downstream, *fakeSink) {
	var sink = &fakeSink{}
	return Downstream{Id: NextDownstreamId(), Peer: "test", Epoch: epoch, Sink: sink}, sink
}

func readyRegion(regionID uint64, version uint64) Region {
	return Region{Id: regionID, StartKey: []byte("a"), EndKey: []byte("z"), Epoch: RegionEpoch{Version: version}}
}

// TestSubscribeBeforeReadyIsQueuedThenReplayed covers P4: a downstream that
// subscribes while Pending receives nothing until on_region_ready, then
// participates in fan-out exactly like one that subscribed after.
func TestSubscribeBeforeReadyIsQueuedThenReplayed(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	require.Empty(t, sink.events)

	d.OnRegionReady(NewResolver(), readyRegion(1, 1))
	d.OnBatch(CommandBatch{RegionId: 1, Index: 1, Requests: []Request{
		defaultCFRequest([]byte("k"), 5, []byte("v")),
	}})

	require.Len(t, sink.events, 1)
	require.Equal(t, "Entries", sink.events[0].Events[0].Variant())
}

// TestOnBatchAlwaysEmitsOneEnvelope covers the fan-out contract: exactly one
// envelope per on_batch call, even when the batch decodes to zero rows.
func TestOnBatchAlwaysEmitsOneEnvelope(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	d.OnBatch(CommandBatch{RegionId: 1, Index: 1, Requests: nil})

	require.Len(t, sink.events, 1)
	require.Equal(t, "Entries", sink.events[0].Events[0].Variant())
	require.Empty(t, sink.events[0].Events[0].Entries.Rows)
}

// TestFanOutFidelity covers P3: every active downstream observes the same
// sequence of envelopes in the same order.
func TestFanOutFidelity(t *testing.T) {
	var d = NewDelegate(1)
	var ds1, sink1 = newTestDownstream(RegionEpoch{Version: 1})
	var ds2, sink2 = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds1)
	d.Subscribe(ds2)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	d.OnBatch(CommandBatch{RegionId: 1, Index: 1, Requests: []Request{defaultCFRequest([]byte("k"), 5, []byte("v"))}})
	d.resolver.Init()
	d.OnMinTs(9)

	require.Len(t, sink1.events, 2)
	require.Equal(t, sink1.events, sink2.events)
}

// TestLastUnsubscribeDisablesDelegate covers P5.
func TestLastUnsubscribeDisablesDelegate(t *testing.T) {
	var d = NewDelegate(1)
	var ds1, _ = newTestDownstream(RegionEpoch{Version: 1})
	var ds2, _ = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds1)
	d.Subscribe(ds2)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	require.True(t, d.Enabled())
	require.False(t, d.Unsubscribe(ds1.Id, nil))
	require.True(t, d.Enabled())
	require.True(t, d.Unsubscribe(ds2.Id, nil))
	require.False(t, d.Enabled())
}

// TestEpochGateRejectsStaleSubscriber covers P6 and spec scenario 5: a
// downstream subscribing with a stale region version observes an
// EpochNotMatch error rather than being admitted.
func TestEpochGateRejectsStaleSubscriber(t *testing.T) {
	var d = NewDelegate(1)
	d.OnRegionReady(NewResolver(), readyRegion(1, 3))

	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)

	require.Empty(t, d.downstreams)
	require.Len(t, sink.events, 1)
	var ev = sink.events[0].Events[0]
	require.Equal(t, "Error", ev.Variant())
	require.NotNil(t, ev.Error.EpochNotMatch)
}

// TestFailFanOutsErrorToAllAndDisables reproduces spec scenario 1: a fail
// with NotLeader reaches every downstream, pending and active alike, and the
// delegate is permanently disabled afterward.
func TestFailFanOutsErrorToAllAndDisables(t *testing.T) {
	var d = NewDelegate(7)
	var active, activeSink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(active)
	d.OnRegionReady(NewResolver(), readyRegion(7, 1))

	var pending, pendingSink = newTestDownstream(RegionEpoch{Version: 1})
	d.phase = phasePending // simulate a downstream still queued in this delegate's pending buffer
	d.Subscribe(pending)
	d.phase = phaseActive

	d.Fail(ClassifyReplicationFault(FaultNotLeader, 7))

	require.False(t, d.Enabled())
	require.Len(t, activeSink.events, 1)
	require.Len(t, pendingSink.events, 1)
	require.NotNil(t, activeSink.events[0].Events[0].Error.NotLeader)
	require.Equal(t, uint64(7), activeSink.events[0].Events[0].Error.NotLeader.RegionId)

	// Further calls are no-ops.
	d.OnBatch(CommandBatch{RegionId: 7, Index: 1})
	require.Len(t, activeSink.events, 1)
}

// TestOnAdminSplitProducesEpochNotMatchWithNewRegions reproduces spec
// scenario 2: an observed split fails the delegate with EpochNotMatch
// naming the resulting region ids {10, 11}.
func TestOnAdminSplitProducesEpochNotMatchWithNewRegions(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	d.OnAdmin(AdminSplit, AdminResponse{
		CmdType: AdminSplit,
		NewRegions: []RegionInfo{
			{Id: 10, StartKey: []byte("a"), EndKey: []byte("m")},
			{Id: 11, StartKey: []byte("m"), EndKey: []byte("z")},
		},
	})

	require.False(t, d.Enabled())
	require.Len(t, sink.events, 1)
	var epochErr = sink.events[0].Events[0].Error.EpochNotMatch
	require.NotNil(t, epochErr)
	require.Len(t, epochErr.CurrentRegions, 2)
	require.Equal(t, uint64(10), epochErr.CurrentRegions[0].Id)
	require.Equal(t, uint64(11), epochErr.CurrentRegions[1].Id)
}

// TestOnAdminMergeProducesEpochNotMatchWithEmptyRegions reproduces spec
// scenario 3: an observed merge fails the delegate with EpochNotMatch
// carrying no region list.
func TestOnAdminMergeProducesEpochNotMatchWithEmptyRegions(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	d.OnAdmin(AdminCommitMerge, AdminResponse{CmdType: AdminCommitMerge})

	require.False(t, d.Enabled())
	var epochErr = sink.events[0].Events[0].Error.EpochNotMatch
	require.NotNil(t, epochErr)
	require.Empty(t, epochErr.CurrentRegions)
}

// TestOnAdminOtherIsNoop ensures an uninteresting admin command leaves the
// delegate untouched.
func TestOnAdminOtherIsNoop(t *testing.T) {
	var d = NewDelegate(1)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))
	d.OnAdmin(AdminOther, AdminResponse{})
	require.True(t, d.Enabled())
	require.Equal(t, phaseActive, d.phase)
}

// TestScanBufferedThenReadyProducesSingleEnvelope reproduces spec scenario 4
// end-to-end through the delegate: a scan delivered before on_region_ready
// is queued, then replayed as exactly one envelope containing the
// Prewrite/Committed/Initialized rows with no Rollback present.
func TestScanBufferedThenReadyProducesSingleEnvelope(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)

	var batch = ScanBatch{
		{Prewrite: &ScanPrewrite{
			Key:  []byte("a"),
			Lock: EncodeLock(Lock{LockType: LockTypePut, Ts: 1, ShortValue: []byte("b")}),
		}},
		{Commit: &ScanCommit{
			Key:      []byte("a"),
			CommitTs: 2,
			Write:    EncodeWriteRecord(WriteRecord{WriteType: WriteTypePut, StartTs: 1, ShortValue: []byte("b")}),
		}},
		{Commit: &ScanCommit{
			Key:   []byte("a"),
			Write: EncodeWriteRecord(WriteRecord{WriteType: WriteTypeRollback, StartTs: 3}),
		}},
	}
	d.OnScan(ds.Id, batch)
	require.Empty(t, sink.events)

	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	require.Len(t, sink.events, 1)
	var rows = sink.events[0].Events[0].Entries.Rows
	require.Len(t, rows, 3)
	require.Equal(t, pb.LogType_PREWRITE, rows[0].LogType)
	require.Equal(t, pb.LogType_COMMITTED, rows[1].LogType)
	require.Equal(t, pb.LogType_INITIALIZED, rows[2].LogType)
}

// TestResolvedTsMonotonicityThroughDelegate reproduces spec scenario 6 via
// the delegate surface: locks at start_ts 5 and 8, Resolve(10) yields 5,
// untracking 5 then Resolve(12) yields 8.
func TestResolvedTsMonotonicityThroughDelegate(t *testing.T) {
	var d = NewDelegate(1)
	var ds, sink = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))
	d.resolver.Init()

	d.OnBatch(CommandBatch{RegionId: 1, Index: 1, Requests: []Request{
		lockCFRequest([]byte("k1"), Lock{LockType: LockTypePut, Ts: 5, ShortValue: []byte("v1")}),
	}})
	d.OnBatch(CommandBatch{RegionId: 1, Index: 2, Requests: []Request{
		lockCFRequest([]byte("k2"), Lock{LockType: LockTypePut, Ts: 8, ShortValue: []byte("v2")}),
	}})

	d.OnMinTs(10)
	var last = sink.events[len(sink.events)-1].Events[0]
	require.Equal(t, "ResolvedTs", last.Variant())
	require.Equal(t, uint64(5), last.ResolvedTs)

	d.OnBatch(CommandBatch{RegionId: 1, Index: 3, Requests: []Request{
		writeCFRequest([]byte("k1"), 6, WriteRecord{WriteType: WriteTypePut, StartTs: 5, ShortValue: []byte("v1")}),
	}})
	d.OnMinTs(12)
	last = sink.events[len(sink.events)-1].Events[0]
	require.Equal(t, "ResolvedTs", last.Variant())
	require.Equal(t, uint64(8), last.ResolvedTs)
}

// TestOnMinTsBeforeReadyIsNoop guards the Pending-phase precondition: no
// envelope is produced and no panic occurs.
func TestOnMinTsBeforeReadyIsNoop(t *testing.T) {
	var d = NewDelegate(1)
	require.NotPanics(t, func() { d.OnMinTs(5) })
}

// TestOnRegionReadyTwiceIsAProgramBug asserts the documented precondition:
// calling on_region_ready outside Pending panics rather than silently
// reinitializing state.
func TestOnRegionReadyTwiceIsAProgramBug(t *testing.T) {
	var d = NewDelegate(1)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))
	require.Panics(t, func() { d.OnRegionReady(NewResolver(), readyRegion(1, 1)) })
}

// TestUnsubscribeUnknownIdIsNoop ensures unsubscribing an id that was never
// subscribed does not disable the delegate.
func TestUnsubscribeUnknownIdIsNoop(t *testing.T) {
	var d = NewDelegate(1)
	var ds, _ = newTestDownstream(RegionEpoch{Version: 1})
	d.Subscribe(ds)
	d.OnRegionReady(NewResolver(), readyRegion(1, 1))

	require.False(t, d.Unsubscribe(DownstreamId(999999), nil))
	require.True(t, d.Enabled())
}
