// Package regioncdc defines the wire schema exchanged between a region's CDC
// delegate and its subscribed downstreams: row-level change events, resolved
// timestamp markers, and terminal region errors.
//
// Types in this file are hand-written in the shape protoc-gen-gogofaster would
// emit (plain structs, a oneof modeled as mutually-exclusive pointer fields,
// and Marshal/Unmarshal/Size methods in wire.go) since no protoc toolchain is
// available in this module; see wire.go for the codec.
package regioncdc

// OpType classifies the mutation carried by a Row.
type OpType int32

const (
	OpType_UNKNOWN OpType = 0
	OpType_PUT     OpType = 1
	OpType_DELETE  OpType = 2
)

var OpType_name = map[int32]string{
	0: "UNKNOWN",
	1: "PUT",
	2: "DELETE",
}

func (t OpType) String() string {
	if s, ok := OpType_name[int32(t)]; ok {
		return s
	}
	return "UNKNOWN"
}

// LogType distinguishes the five shapes a Row can take on the wire.
type LogType int32

const (
	LogType_UNKNOWN     LogType = 0
	LogType_PREWRITE    LogType = 1
	LogType_COMMIT      LogType = 2
	LogType_ROLLBACK    LogType = 3
	LogType_COMMITTED   LogType = 4
	LogType_INITIALIZED LogType = 5
)

var LogType_name = map[int32]string{
	0: "UNKNOWN",
	1: "PREWRITE",
	2: "COMMIT",
	3: "ROLLBACK",
	4: "COMMITTED",
	5: "INITIALIZED",
}

func (t LogType) String() string {
	if s, ok := LogType_name[int32(t)]; ok {
		return s
	}
	return "UNKNOWN"
}

// Row is a single self-describing change row. The Initialized marker row is
// zero in every field except LogType, which is LogType_INITIALIZED.
type Row struct {
	StartTs  uint64
	CommitTs uint64
	Key      []byte
	Value    []byte
	OpType   OpType
	LogType  LogType
}

// Entries is a batch of Rows sharing one triggering event (a command batch
// index, or a single scan).
type Entries struct {
	Rows []Row
}

// RegionInfo is a minimal region descriptor carried inside EpochNotMatchError,
// sufficient for a client to re-resolve and resubscribe.
type RegionInfo struct {
	Id       uint64
	StartKey []byte
	EndKey   []byte
}

// RegionError is the terminal, wire-level classification of a region fault.
// Exactly one field is set; nil fields mean "not this kind."
type RegionError struct {
	NotLeader      *NotLeaderError
	RegionNotFound *RegionNotFoundError
	EpochNotMatch  *EpochNotMatchError
}

type NotLeaderError struct {
	RegionId uint64
}

type RegionNotFoundError struct {
	RegionId uint64
}

type EpochNotMatchError struct {
	CurrentRegions []RegionInfo
}

// Event is one entry of a ChangeDataEvent: exactly one of Entries, ResolvedTs
// (HasResolvedTs true), Error, or Admin is populated.
type Event struct {
	RegionId uint64
	Index    uint64

	Entries *Entries

	HasResolvedTs bool
	ResolvedTs    uint64

	Error *RegionError

	Admin *AdminNotice
}

// AdminNotice carries the observed admin command kind for audit logging; it
// never drives behavior on the wire — EpochNotMatch already captures the
// consequence — but downstream tooling finds it useful to distinguish a split
// from a merge from a leader transfer.
type AdminNotice struct {
	Kind string
}

// ChangeDataEvent is the outbound envelope streamed to a subscribed downstream.
type ChangeDataEvent struct {
	Events []Event
}

// SubscribeRequest opens one streaming subscription to a region's change
// data, gated by the epoch the caller last observed for that region.
type SubscribeRequest struct {
	RegionId uint64
	ConfVer  uint64
	Version  uint64
}
