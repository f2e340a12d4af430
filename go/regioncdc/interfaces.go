package regioncdc

// ColumnFamily names the column family a raw Put/Delete request targets.
type ColumnFamily int

const (
	CFDefault ColumnFamily = iota
	CFWrite
	CFLock
	// CFEmpty is the unnamed default column family some replication layers
	// use for untagged requests; it is decoded identically to CFDefault.
	CFEmpty
)

// CmdType classifies one raw replication request.
type CmdType int

const (
	CmdOther CmdType = iota
	CmdPut
	CmdDelete
)

// Request is one raw replication-layer mutation, as delivered by the
// replication observer collaborator (§6).
type Request struct {
	CmdType CmdType
	CF      ColumnFamily
	Key     []byte
	Value   []byte
}

// CommandBatch is a raft-committed batch of requests for one region, as
// delivered by the replication observer collaborator (§6).
type CommandBatch struct {
	RegionId uint64
	Index    uint64
	Requests []Request
}

// AdminCmdType classifies an observed admin command for on_admin (§4.1).
type AdminCmdType int

const (
	AdminOther AdminCmdType = iota
	AdminSplit
	AdminBatchSplit
	AdminPrepareMerge
	AdminCommitMerge
	AdminRollbackMerge
)

// IsMerge reports whether this admin command is any merge variant.
func (t AdminCmdType) IsMerge() bool {
	return t == AdminPrepareMerge || t == AdminCommitMerge || t == AdminRollbackMerge
}

// IsSplit reports whether this admin command is a split variant.
func (t AdminCmdType) IsSplit() bool {
	return t == AdminSplit || t == AdminBatchSplit
}

// AdminResponse carries the outcome of an observed admin command, namely the
// resulting region list for a split (§4.1, §4.5).
type AdminResponse struct {
	CmdType    AdminCmdType
	NewRegions []RegionInfo
}

// RegionInfo is the minimal region descriptor carried in an EpochNotMatch
// error. It mirrors the fields of the wire RegionInfo for collaborators that
// build AdminResponses; OnAdmin copies it into the wire type field by field.
type RegionInfo struct {
	Id       uint64
	StartKey []byte
	EndKey   []byte
}

// ScanEntry is one entry of the finite, ordered sequence the snapshot
// scanner collaborator delivers to on_scan (§4.3, §6). Exactly one of
// Prewrite or Commit is set; decodeScan panics on an entry with neither. The
// `Option<ScanEntry>` None end-of-scan case is not an entry: the end of the
// ScanBatch marks it — see ScanBatch.
type ScanEntry struct {
	Prewrite *ScanPrewrite
	Commit   *ScanCommit
}

// ScanPrewrite is a scanned (default, lock) pair for a key with an active
// prewrite at scan time.
type ScanPrewrite struct {
	Key     []byte
	Default []byte // may be nil if the short value was inlined in the lock
	Lock    []byte // encoded Lock value
}

// ScanCommit is a scanned (default, write) pair for a committed key. CommitTs
// is supplied directly by the scanner (it is the suffix of the write-CF key
// it read, already stripped), since only the WriteRecord value bytes are
// carried here.
type ScanCommit struct {
	Key      []byte
	CommitTs Timestamp
	Default  []byte // may be nil if the short value was inlined in the write
	Write    []byte // encoded WriteRecord value
}

// ScanBatch is the full ordered sequence of scan entries bound for one
// downstream, terminated implicitly by the end of the slice (the wire
// `Option<ScanEntry>` None case is synthesized by on_scan, not carried here).
type ScanBatch []ScanEntry
