// Package regionendpoint owns the set of per-region Delegates live in this
// process: it assigns each region to a worker, bounds a diagnostic index of
// downstream peer addresses, and records each region's worker and last known
// epoch in a registry that operator tooling reads back (routing never does).
package regionendpoint

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/minio/highwayhash"
)

// regionHashKey is a fixed 32 bytes (as required by HighwayHash), read once
// from /dev/random at authoring time; stable across process restarts is the
// point, not secrecy.
var regionHashKey, _ = hex.DecodeString("4f6e09c6d0b6427aa1c9c6bfed8a5cfcbb3f3c1eec6b5e0f9c38e3d1e6f2a8d4")

// WorkerIndexFor deterministically assigns a region to one of numWorkers
// cooperative workers, using the top 32 bits of a HighwayHash checksum of the
// region id. The assignment is stable across process restarts (given a fixed
// numWorkers) since it depends only on the fixed key and the region id.
func WorkerIndexFor(regionID uint64, numWorkers int) int {
	if numWorkers <= 0 {
		panic("regionendpoint: numWorkers must be positive")
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], regionID)
	var h = uint32(highwayhash.Sum64(buf[:], regionHashKey) >> 32)
	return int(h) % numWorkers
}
