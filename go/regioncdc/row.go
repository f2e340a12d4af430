package regioncdc

import pb "github.com/estuary/flow/go/protocols/regioncdc"

// OpType classifies the mutation carried by an EventRow.
type OpType int

const (
	OpUnknown OpType = iota
	OpPut
	OpDelete
)

func (t OpType) toWire() pb.OpType {
	switch t {
	case OpPut:
		return pb.OpType_PUT
	case OpDelete:
		return pb.OpType_DELETE
	default:
		return pb.OpType_UNKNOWN
	}
}

// LogType distinguishes the shape/provenance of an EventRow.
type LogType int

const (
	LogUnknown LogType = iota
	LogPrewrite
	LogCommit
	LogRollback
	LogCommitted
	LogInitialized
)

func (t LogType) toWire() pb.LogType {
	switch t {
	case LogPrewrite:
		return pb.LogType_PREWRITE
	case LogCommit:
		return pb.LogType_COMMIT
	case LogRollback:
		return pb.LogType_ROLLBACK
	case LogCommitted:
		return pb.LogType_COMMITTED
	case LogInitialized:
		return pb.LogType_INITIALIZED
	default:
		return pb.LogType_UNKNOWN
	}
}

// EventRow is the internal, decoded representation of one row-level change.
// The Initialized marker row is zero in every field except LogType, which is
// LogInitialized; an all-zero row (LogUnknown) is a default-CF value that met
// no lock or write row in its batch.
type EventRow struct {
	StartTs  Timestamp
	CommitTs Timestamp
	Key      []byte
	Value    []byte
	OpType   OpType
	LogType  LogType
}

// toWire converts an EventRow to its wire representation (§6).
func (r EventRow) toWire() pb.Row {
	return pb.Row{
		StartTs:  uint64(r.StartTs),
		CommitTs: uint64(r.CommitTs),
		Key:      r.Key,
		Value:    r.Value,
		OpType:   r.OpType.toWire(),
		LogType:  r.LogType.toWire(),
	}
}

// rowsToWire converts a slice of EventRows to their wire representation,
// preserving order.
func rowsToWire(rows []EventRow) []pb.Row {
	var out = make([]pb.Row, len(rows))
	for i := range rows {
		out[i] = rows[i].toWire()
	}
	return out
}
