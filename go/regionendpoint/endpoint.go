package regionendpoint

import (
	"fmt"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
	"github.com/estuary/flow/go/regioncdc"
	"github.com/estuary/flow/go/regionmetrics"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// Endpoint owns every region Delegate live in this process: it routes
// inbound events to the worker responsible for a region, bounds the count of
// distinct downstream identities it will track for logging/diagnostics, and
// records each region's worker and last known epoch in the registry for
// operator tooling. Routing always uses WorkerIndexFor's hash, which is stable
// across restarts for a fixed worker count; the registry is not read when
// routing.
type Endpoint struct {
	workers  []*worker
	registry *Registry

	// recentDownstreams bounds an auxiliary diagnostic index (peer address by
	// DownstreamId) independent from each Delegate's own downstream list,
	// which is unbounded by design since it is capped by subscriber count,
	// not by history. Eviction here only affects logging quality, never
	// correctness.
	recentDownstreams *lru.Cache[regioncdc.DownstreamId, string]
}

// Config controls Endpoint construction.
type Config struct {
	NumWorkers            int
	WorkerQueueDepth      int
	RegistryPath          string
	MaxTrackedDownstreams int
}

// NewEndpoint starts NumWorkers worker goroutines and opens the backing
// registry database at Config.RegistryPath.
func NewEndpoint(cfg Config) (*Endpoint, error) {
	if cfg.NumWorkers <= 0 {
		return nil, fmt.Errorf("regionendpoint: NumWorkers must be positive")
	}
	var registry, err = OpenRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	var tracked, lruErr = lru.New[regioncdc.DownstreamId, string](cfg.MaxTrackedDownstreams)
	if lruErr != nil {
		return nil, fmt.Errorf("regionendpoint: building downstream cache: %w", lruErr)
	}

	var ep = &Endpoint{
		workers:           make([]*worker, cfg.NumWorkers),
		registry:          registry,
		recentDownstreams: tracked,
	}
	for i := range ep.workers {
		ep.workers[i] = newWorker(i, cfg.WorkerQueueDepth)
		go ep.workers[i].run()
	}
	return ep, nil
}

// Stop closes every worker's command queue and the backing registry. It does
// not wait for the workers to drain their queues: commands still queued may
// run after the registry is closed, and their registry writes then fail and
// are logged.
func (ep *Endpoint) Stop() error {
	for _, w := range ep.workers {
		w.stop()
	}
	return ep.registry.Close()
}

func (ep *Endpoint) workerFor(regionID uint64) *worker {
	return ep.workers[WorkerIndexFor(regionID, len(ep.workers))]
}

// ensureDelegate returns (creating if absent) the Delegate for regionID,
// persisting its worker assignment the first time it is created.
func (ep *Endpoint) ensureDelegate(regions map[uint64]*regioncdc.Delegate, regionID, workerIndex uint64) *regioncdc.Delegate {
	if d, ok := regions[regionID]; ok {
		return d
	}
	var d = regioncdc.NewDelegate(regionID)
	regions[regionID] = d
	if err := ep.registry.Put(regionID, int(workerIndex), 0, 0); err != nil {
		log.WithFields(log.Fields{"region": regionID, "err": err}).Warn("failed to persist new region assignment")
	}
	return d
}

// Subscribe routes a subscribe request to the worker owning regionID.
func (ep *Endpoint) Subscribe(regionID uint64, ds regioncdc.Downstream) {
	ep.recentDownstreams.Add(ds.Id, ds.Peer)
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		var d = ep.ensureDelegate(regions, regionID, uint64(w.index))
		d.Subscribe(ds)
		regionmetrics.ObserveDelegate(regionID, d)
	})
}

// OnScan routes one downstream's snapshot-scan sequence (§4.3, §4.8) to the
// owning worker, to be merged with the live tail at on_region_ready if the
// region is still Pending, or decoded and delivered immediately if Active.
func (ep *Endpoint) OnScan(regionID uint64, id regioncdc.DownstreamId, batch regioncdc.ScanBatch) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		ep.ensureDelegate(regions, regionID, uint64(w.index)).OnScan(id, batch)
	})
}

// Unsubscribe routes an unsubscribe request to the owning worker, garbage
// collecting the delegate's persisted assignment once the delegate becomes
// empty.
func (ep *Endpoint) Unsubscribe(regionID uint64, id regioncdc.DownstreamId, errKind *pb.RegionError) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		var d, ok = regions[regionID]
		if !ok {
			return
		}
		if last := d.Unsubscribe(id, errKind); last {
			delete(regions, regionID)
			regionmetrics.ForgetRegion(regionID)
			if err := ep.registry.Delete(regionID); err != nil {
				log.WithFields(log.Fields{"region": regionID, "err": err}).Warn("failed to delete region assignment")
			}
			return
		}
		regionmetrics.ObserveDelegate(regionID, d)
	})
}

// OnRegionReady routes a replication-layer readiness notice to the owning
// worker.
func (ep *Endpoint) OnRegionReady(regionID uint64, resolver *regioncdc.Resolver, region regioncdc.Region) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		var d = ep.ensureDelegate(regions, regionID, uint64(w.index))
		d.OnRegionReady(resolver, region)
		regionmetrics.ObserveDelegate(regionID, d)
		if err := ep.registry.Put(regionID, w.index, region.Epoch.ConfVer, region.Epoch.Version); err != nil {
			log.WithFields(log.Fields{"region": regionID, "err": err}).Warn("failed to persist region epoch")
		}
	})
}

// OnBatch routes a committed batch to the owning worker.
func (ep *Endpoint) OnBatch(regionID uint64, batch regioncdc.CommandBatch) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		if d, ok := regions[regionID]; ok {
			d.OnBatch(batch)
			regionmetrics.IncEnvelopesSent(regionID, d.DownstreamCount())
			regionmetrics.ObserveDelegate(regionID, d)
		}
	})
}

// OnMinTs routes a resolved-ts driver tick to the owning worker.
func (ep *Endpoint) OnMinTs(regionID uint64, minTs regioncdc.Timestamp) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		if d, ok := regions[regionID]; ok && d.OnMinTs(minTs) {
			if resolved, ok := d.LastResolvedTs(); ok {
				regionmetrics.ObserveResolvedTs(regionID, resolved)
			}
			regionmetrics.IncEnvelopesSent(regionID, d.DownstreamCount())
		}
	})
}

// Fail routes a terminal replication fault to the owning worker and garbage
// collects the failed delegate's persisted assignment.
func (ep *Endpoint) Fail(regionID uint64, err *pb.RegionError) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		if d, ok := regions[regionID]; ok {
			d.Fail(err)
			delete(regions, regionID)
			regionmetrics.ForgetRegion(regionID)
		}
		if delErr := ep.registry.Delete(regionID); delErr != nil {
			log.WithFields(log.Fields{"region": regionID, "err": delErr}).Warn("failed to delete region assignment")
		}
	})
}

// OnAdmin routes an observed admin command to the owning worker.
func (ep *Endpoint) OnAdmin(regionID uint64, cmd regioncdc.AdminCmdType, resp regioncdc.AdminResponse) {
	var w = ep.workerFor(regionID)
	w.submit(func(regions map[uint64]*regioncdc.Delegate) {
		if d, ok := regions[regionID]; ok {
			d.OnAdmin(cmd, resp)
			delete(regions, regionID)
			regionmetrics.ForgetRegion(regionID)
		}
		if delErr := ep.registry.Delete(regionID); delErr != nil {
			log.WithFields(log.Fields{"region": regionID, "err": delErr}).Warn("failed to delete region assignment")
		}
	})
}
