package regionscan

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/estuary/flow/go/regioncdc"
	"google.golang.org/api/option"
)

// ArchivalSource bootstraps a region a process has never replicated before
// from a GCS-resident snapshot, rather than paying for a full live RocksDB
// scan of a region this store has no local data for yet. Objects are
// prefixed by region id and hold a length-delimited sequence of encoded
// ScanEntry records in the same order a live scan would emit them (locks,
// then writes, both raw-key ordered).
type ArchivalSource struct {
	client *storage.Client
	bucket string
}

// NewArchivalSource builds a client scoped to read-only access, matching the
// access pattern of this store's other GCS consumers.
func NewArchivalSource(ctx context.Context, bucket string) (*ArchivalSource, error) {
	var client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
	if err != nil {
		return nil, fmt.Errorf("regionscan: building storage client: %w", err)
	}
	return &ArchivalSource{client: client, bucket: bucket}, nil
}

// Close releases the underlying GCS client.
func (s *ArchivalSource) Close() error { return s.client.Close() }

// Scan fetches and decodes the snapshot object for regionID.
func (s *ArchivalSource) Scan(ctx context.Context, regionID uint64) (regioncdc.ScanBatch, error) {
	var object = fmt.Sprintf("regions/%020d.scan", regionID)
	var r, err = s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("regionscan: opening archival snapshot for region %d: %w", regionID, err)
	}
	defer r.Close()

	var raw, readErr = io.ReadAll(r)
	if readErr != nil {
		return nil, fmt.Errorf("regionscan: reading archival snapshot for region %d: %w", regionID, readErr)
	}
	return decodeArchivalSnapshot(raw)
}

// decodeArchivalSnapshot parses the on-disk snapshot format: a repeated
// sequence of (kind byte, length-prefixed key, length-prefixed encoded
// Lock-or-Write record, [8-byte big-endian commit_ts for writes],
// length-prefixed default-CF value). Length prefixes are 4-byte big-endian.
func decodeArchivalSnapshot(raw []byte) (regioncdc.ScanBatch, error) {
	var batch regioncdc.ScanBatch
	for len(raw) > 0 {
		if len(raw) < 1 {
			return nil, fmt.Errorf("regionscan: truncated archival snapshot")
		}
		var kind = raw[0]
		raw = raw[1:]

		key, rest, err := readLenPrefixed(raw)
		if err != nil {
			return nil, err
		}
		raw = rest

		value, rest2, err := readLenPrefixed(raw)
		if err != nil {
			return nil, err
		}
		raw = rest2

		switch kind {
		case archivalKindLock:
			def, rest3, err := readLenPrefixed(raw)
			if err != nil {
				return nil, err
			}
			raw = rest3
			batch = append(batch, regioncdc.ScanEntry{Prewrite: &regioncdc.ScanPrewrite{
				Key: key, Lock: value, Default: copyNonEmpty(def),
			}})
		case archivalKindWrite:
			if len(raw) < 8 {
				return nil, fmt.Errorf("regionscan: truncated commit_ts in archival snapshot")
			}
			var commitTs = binary.BigEndian.Uint64(raw[:8])
			raw = raw[8:]
			def, rest3, err := readLenPrefixed(raw)
			if err != nil {
				return nil, err
			}
			raw = rest3
			batch = append(batch, regioncdc.ScanEntry{Commit: &regioncdc.ScanCommit{
				Key: key, CommitTs: regioncdc.Timestamp(commitTs), Write: value, Default: copyNonEmpty(def),
			}})
		default:
			return nil, fmt.Errorf("regionscan: unknown archival entry kind %d", kind)
		}
	}
	return batch, nil
}

const (
	archivalKindLock  = 1
	archivalKindWrite = 2
)

func readLenPrefixed(raw []byte) (value, rest []byte, err error) {
	if len(raw) < 4 {
		return nil, nil, fmt.Errorf("regionscan: truncated length prefix")
	}
	var n = binary.BigEndian.Uint32(raw[:4])
	raw = raw[4:]
	if uint64(len(raw)) < uint64(n) {
		return nil, nil, fmt.Errorf("regionscan: truncated length-prefixed field")
	}
	return raw[:n], raw[n:], nil
}
