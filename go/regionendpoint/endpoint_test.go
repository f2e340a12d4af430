package regionendpoint

import (
	"testing"
	"time"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	"github.com/estuary/flow/go/regioncdc"
	"github.com/stretchr/testify/require"
)

type fakeSink struct{ events []pb.ChangeDataEvent }

func (s *fakeSink) Send(ev *pb.ChangeDataEvent) error {
	s.events = append(s.events, *ev)
	return nil
}

func TestEndpointRoutesToSameWorkerEveryTime(t *testing.T) {
	var ep, err = NewEndpoint(Config{NumWorkers: 4, WorkerQueueDepth: 8, RegistryPath: ":memory:", MaxTrackedDownstreams: 16})
	require.NoError(t, err)
	defer ep.Stop()

	var sink = &fakeSink{}
	var ds = regioncdc.Downstream{Id: regioncdc.NextDownstreamId(), Peer: "p", Sink: sink}

	ep.Subscribe(42, ds)
	ep.OnRegionReady(42, regioncdc.NewResolver(), regioncdc.Region{Id: 42})
	ep.OnBatch(42, regioncdc.CommandBatch{RegionId: 42, Index: 1})

	require.Eventually(t, func() bool { return len(sink.events) == 1 }, time.Second, time.Millisecond)
}

func TestEndpointFailGCsAssignment(t *testing.T) {
	var ep, err = NewEndpoint(Config{NumWorkers: 2, WorkerQueueDepth: 8, RegistryPath: ":memory:", MaxTrackedDownstreams: 16})
	require.NoError(t, err)
	defer ep.Stop()

	var sink = &fakeSink{}
	var ds = regioncdc.Downstream{Id: regioncdc.NextDownstreamId(), Peer: "p", Sink: sink}

	ep.Subscribe(7, ds)
	ep.OnRegionReady(7, regioncdc.NewResolver(), regioncdc.Region{Id: 7})
	ep.Fail(7, regioncdc.ClassifyReplicationFault(regioncdc.FaultNotLeader, 7))

	require.Eventually(t, func() bool {
		var _, ok, qerr = ep.registry.Get(7)
		return !ok && qerr == nil
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(sink.events) == 1 }, time.Second, time.Millisecond)
}
