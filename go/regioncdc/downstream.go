package regioncdc

import (
	"sync/atomic"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	log "github.com/sirupsen/logrus"
)

// DownstreamId is a process-wide unique, monotonically allocated identifier
// for one subscription instance. The zero value is never allocated.
type DownstreamId uint64

// idAllocator hands out monotonically increasing DownstreamIds, shared by
// every region's delegates in the process.
type idAllocator struct{ next uint64 }

var globalIds idAllocator

// NextDownstreamId allocates a new process-wide unique DownstreamId.
func NextDownstreamId() DownstreamId {
	return DownstreamId(atomic.AddUint64(&globalIds.next, 1))
}

// RegionEpoch is the optimistic-concurrency token compared at subscribe time.
// Version increments on any split/merge; ConfVer on membership change.
type RegionEpoch struct {
	ConfVer uint64
	Version uint64
}

// Peer is carried on a Region for diagnostics only; the delegate never dials
// peers directly.
type Peer struct {
	StoreId uint64
	Addr    string
}

// Region is the topology descriptor installed into a Delegate at
// on_region_ready, sourced from the replication layer / etcd watch.
type Region struct {
	Id       uint64
	StartKey []byte
	EndKey   []byte
	Epoch    RegionEpoch
	Peers    []Peer
}

// Sink is the outbound, non-blocking push channel a downstream provides. Send
// must not block; a failed send is logged and ignored by the delegate, with
// eventual cleanup left to the endpoint that owns the connection.
type Sink interface {
	// Send attempts to enqueue the envelope without blocking. It returns an
	// error if the receiving side has gone away.
	Send(*pb.ChangeDataEvent) error
}

// Downstream is a single subscriber: an identity, the region epoch it
// observed when it subscribed, and a handle to push envelopes to it. There is
// intentionally no back-reference to the owning Delegate.
type Downstream struct {
	Id    DownstreamId
	Peer  string
	Epoch RegionEpoch
	Sink  Sink
}

// send pushes one envelope to this downstream's sink, logging and swallowing
// a SinkSend failure rather than propagating it — the endpoint is
// responsible for eventually noticing the dead connection and unsubscribing.
func (d Downstream) send(ev pb.ChangeDataEvent) {
	if err := d.Sink.Send(&ev); err != nil {
		log.WithFields(log.Fields{
			"downstream": d.Id,
			"peer":       d.Peer,
			"err":        err,
		}).Warn("failed to send ChangeDataEvent to downstream sink")
	}
}
