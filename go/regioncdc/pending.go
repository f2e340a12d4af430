package regioncdc

// pendingScan is a queued on_scan call received before the region became
// ready.
type pendingScan struct {
	id    DownstreamId
	batch ScanBatch
}

// PendingBuffer holds everything a Delegate receives while still in the
// Pending phase, replayed in arrival order once on_region_ready installs a
// Resolver and Region (§3, §4.1, P4).
type PendingBuffer struct {
	downstreams []Downstream
	scans       []pendingScan
}
