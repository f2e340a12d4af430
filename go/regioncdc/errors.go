package regioncdc

import (
	"fmt"

	pb "github.com/estuary/flow/go/protocols/regioncdc"
)

// ReplicationFaultKind is the internal replication-layer fault kinds the
// classifier accepts (§4.5, §7). Any value outside this set is a program
// bug and aborts the process rather than producing a wire error.
type ReplicationFaultKind int

const (
	FaultNotLeader ReplicationFaultKind = iota
	FaultRegionNotFound
)

// ClassifyReplicationFault maps an internal replication-layer fault to its
// terminal wire-level RegionError. It is the only path by which a NotLeader
// or RegionNotFound error reaches the wire; any fault kind outside the known
// set indicates a program bug and is not locally recoverable.
func ClassifyReplicationFault(kind ReplicationFaultKind, regionID uint64) *pb.RegionError {
	switch kind {
	case FaultNotLeader:
		return &pb.RegionError{NotLeader: &pb.NotLeaderError{RegionId: regionID}}
	case FaultRegionNotFound:
		return &pb.RegionError{RegionNotFound: &pb.RegionNotFoundError{RegionId: regionID}}
	default:
		panic(fmt.Sprintf("regioncdc: unclassifiable replication fault kind %v", kind))
	}
}

// ClassifyEpochMismatch builds the EpochNotMatch variant used both at
// subscribe time (§4.1, stale epoch.version) and from on_admin (§4.1, §4.5,
// observed split/merge).
func ClassifyEpochMismatch(currentRegions []pb.RegionInfo) *pb.RegionError {
	return &pb.RegionError{EpochNotMatch: &pb.EpochNotMatchError{CurrentRegions: currentRegions}}
}
