package regioncdc

import (
	"sync/atomic"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	log "github.com/sirupsen/logrus"
)

// phase is the Delegate's lifecycle tag (§3, §9): modeling it as a tagged
// variant rather than an option-of-pending keeps invalid transitions (e.g.
// on_min_ts before ready) a matter of a guarded no-op rather than undefined
// behavior.
type phase int

const (
	phasePending phase = iota
	phaseActive
	phaseFailed
)

// Delegate is the per-region CDC state machine (§4.1). It is owned by
// exactly one cooperative worker goroutine at a time (§5) and therefore
// needs no internal locking; enabled is the sole exception, a flag read by
// other goroutines deciding whether to keep delivering into this delegate.
type Delegate struct {
	regionID uint64
	phase    phase
	enabled  atomic.Bool

	pending PendingBuffer

	region      Region
	resolver    *Resolver
	downstreams []Downstream
}

// NewDelegate returns a Delegate in the Pending phase for the given region.
func NewDelegate(regionID uint64) *Delegate {
	var d = &Delegate{regionID: regionID}
	d.enabled.Store(true)
	return d
}

// Enabled reports whether this delegate is still accepting fan-out.
// Producers outside the owning worker read this with acquire semantics
// (atomic.Bool.Load provides sequential consistency, a strictly stronger
// guarantee) to decide whether to keep delivering (§5).
func (d *Delegate) Enabled() bool { return d.enabled.Load() }

// RegionID returns the region this delegate serves.
func (d *Delegate) RegionID() uint64 { return d.regionID }

// DownstreamCount reports the number of actively subscribed downstreams,
// for diagnostics/metrics; it does not count downstreams still queued in the
// pending buffer.
func (d *Delegate) DownstreamCount() int { return len(d.downstreams) }

// TrackedLockCount reports the number of in-flight locks this delegate's
// resolver is currently tracking, for diagnostics/metrics. It is zero both
// before the region becomes Active and whenever no locks are tracked.
func (d *Delegate) TrackedLockCount() int {
	if d.resolver == nil {
		return 0
	}
	return d.resolver.TrackedLockCount()
}

// LastResolvedTs reports the most recent value this delegate's resolver has
// emitted from on_min_ts, for diagnostics/metrics.
func (d *Delegate) LastResolvedTs() (Timestamp, bool) {
	if d.resolver == nil {
		return 0, false
	}
	return d.resolver.LastResolved()
}

// Subscribe implements §4.1 subscribe.
func (d *Delegate) Subscribe(ds Downstream) {
	switch d.phase {
	case phasePending:
		d.pending.downstreams = append(d.pending.downstreams, ds)
	case phaseActive:
		d.subscribeActive(ds)
	case phaseFailed:
		log.WithFields(log.Fields{"region": d.regionID, "downstream": ds.Id}).
			Debug("dropping subscribe on a failed delegate")
	}
}

func (d *Delegate) subscribeActive(ds Downstream) {
	if ds.Epoch.Version != d.region.Epoch.Version {
		ds.send(pb.ChangeDataEvent{Events: []pb.Event{
			pb.NewErrorEvent(d.regionID, ClassifyEpochMismatch([]pb.RegionInfo{d.currentRegionInfo()})),
		}})
		return
	}
	d.downstreams = append(d.downstreams, ds)
}

func (d *Delegate) currentRegionInfo() pb.RegionInfo {
	return pb.RegionInfo{Id: d.region.Id, StartKey: d.region.StartKey, EndKey: d.region.EndKey}
}

// Unsubscribe implements §4.1 unsubscribe. errKind, if non-nil, is sent to
// the downstream as a terminal error envelope before it is dropped.
func (d *Delegate) Unsubscribe(id DownstreamId, errKind *pb.RegionError) (isLast bool) {
	for i := range d.downstreams {
		if d.downstreams[i].Id != id {
			continue
		}
		var ds = d.downstreams[i]
		d.downstreams = append(d.downstreams[:i], d.downstreams[i+1:]...)
		if errKind != nil {
			ds.send(pb.ChangeDataEvent{Events: []pb.Event{pb.NewErrorEvent(d.regionID, errKind)}})
		}
		if len(d.downstreams) == 0 {
			d.enabled.Store(false)
			return true
		}
		return false
	}

	for i := range d.pending.downstreams {
		if d.pending.downstreams[i].Id != id {
			continue
		}
		var ds = d.pending.downstreams[i]
		d.pending.downstreams = append(d.pending.downstreams[:i], d.pending.downstreams[i+1:]...)
		if errKind != nil {
			ds.send(pb.ChangeDataEvent{Events: []pb.Event{pb.NewErrorEvent(d.regionID, errKind)}})
		}
		return false
	}

	return false
}

// OnRegionReady implements §4.1 on_region_ready. It is a precondition bug to
// call this outside the Pending phase.
func (d *Delegate) OnRegionReady(resolver *Resolver, region Region) {
	if d.phase != phasePending {
		panic("regioncdc: on_region_ready called outside the Pending phase")
	}
	d.resolver, d.region, d.phase = resolver, region, phaseActive

	var subs, scans = d.pending.downstreams, d.pending.scans
	d.pending.downstreams, d.pending.scans = nil, nil

	for _, ds := range subs {
		d.subscribeActive(ds)
	}
	for _, sc := range scans {
		d.onScanActive(sc.id, sc.batch)
	}
}

// OnBatch implements §4.1/§4.2 on_batch.
func (d *Delegate) OnBatch(batch CommandBatch) {
	if d.phase != phaseActive {
		return
	}
	var rows = decodeBatch(batch.Requests, d.resolver)
	d.fanOut(pb.NewEntriesEvent(d.regionID, batch.Index, rowsToWire(rows)))
}

// OnScan implements §4.1/§4.3 on_scan.
func (d *Delegate) OnScan(id DownstreamId, batch ScanBatch) {
	switch d.phase {
	case phasePending:
		d.pending.scans = append(d.pending.scans, pendingScan{id: id, batch: batch})
	case phaseActive:
		d.onScanActive(id, batch)
	case phaseFailed:
		log.WithFields(log.Fields{"region": d.regionID, "downstream": id}).
			Debug("dropping scan delivery on a failed delegate")
	}
}

func (d *Delegate) onScanActive(id DownstreamId, batch ScanBatch) {
	for i := range d.downstreams {
		if d.downstreams[i].Id != id {
			continue
		}
		var rows = decodeScan(batch)
		d.downstreams[i].send(pb.ChangeDataEvent{Events: []pb.Event{
			pb.NewEntriesEvent(d.regionID, 0, rowsToWire(rows)),
		}})
		return
	}
	log.WithFields(log.Fields{"region": d.regionID, "downstream": id}).
		Debug("dropping scan delivery: no matching downstream")
}

// OnMinTs implements §4.1/§4.4 on_min_ts. It reports whether a fresh
// ResolvedTs envelope was fanned out, for diagnostics/metrics — callers that
// don't care may ignore the return value.
func (d *Delegate) OnMinTs(minTs Timestamp) (emitted bool) {
	if d.phase != phaseActive {
		return false
	}
	if resolved, ok := d.resolver.Resolve(minTs); ok {
		d.fanOut(pb.NewResolvedTsEvent(d.regionID, uint64(resolved)))
		return true
	}
	return false
}

// Fail implements §4.1/§7 fail. It is idempotent: a delegate already in the
// Failed phase ignores further calls.
func (d *Delegate) Fail(err *pb.RegionError) {
	if d.phase == phaseFailed {
		return
	}
	d.enabled.Store(false)

	var ev = pb.ChangeDataEvent{Events: []pb.Event{pb.NewErrorEvent(d.regionID, err)}}
	for _, ds := range d.downstreams {
		ds.send(ev)
	}
	for _, ds := range d.pending.downstreams {
		ds.send(ev)
	}

	d.phase = phaseFailed
	d.downstreams = nil
	d.pending = PendingBuffer{}

	log.WithFields(log.Fields{"region": d.regionID, "err": err}).Warn("region delegate failed")
}

// OnAdmin implements §4.1/§4.5 on_admin: observed admin commands are
// interpreted as topology faults. A delegate already Failed ignores further
// admin notices.
func (d *Delegate) OnAdmin(cmd AdminCmdType, resp AdminResponse) {
	if d.phase == phaseFailed {
		return
	}

	var classified *pb.RegionError
	switch {
	case cmd.IsSplit():
		var regions = make([]pb.RegionInfo, len(resp.NewRegions))
		for i, r := range resp.NewRegions {
			regions[i] = pb.RegionInfo{Id: r.Id, StartKey: r.StartKey, EndKey: r.EndKey}
		}
		classified = ClassifyEpochMismatch(regions)
	case cmd.IsMerge():
		classified = ClassifyEpochMismatch(nil)
	default:
		return
	}
	d.Fail(classified)
}

func (d *Delegate) fanOut(ev pb.Event) {
	var cde = pb.ChangeDataEvent{Events: []pb.Event{ev}}
	for _, ds := range d.downstreams {
		ds.send(cde)
	}
}
