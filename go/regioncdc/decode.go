package regioncdc

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// decodeBatch implements §4.2: it walks one CommandBatch's Put requests,
// maintaining an ordered map keyed by raw_key so that short values inlined
// in a lock or write record can be merged in-flight with a same-transaction
// default-CF arrival, without any cross-batch state. It mutates resolver as
// a side effect (track/untrack), matching the live-tail resolver update
// rule.
//
// Delete requests are silently dropped (§4.1): they are presumed GC traces.
// This is known to be imprecise — a replication layer that cannot yet tag
// the origin of a Delete request cannot distinguish a GC trace from a
// user-initiated delete CF write (§9 open question) — and is preserved here
// rather than guessed at.
func decodeBatch(requests []Request, resolver *Resolver) []EventRow {
	var rows = make(map[string]*EventRow)
	var order []string

	var touch = func(key string) {
		if _, ok := rows[key]; !ok {
			order = append(order, key)
		}
	}

	for _, req := range requests {
		if req.CmdType == CmdDelete {
			continue
		}
		if req.CmdType != CmdPut {
			continue
		}

		switch req.CF {
		case CFWrite:
			decodeWritePut(req, rows, touch, resolver)
		case CFLock:
			decodeLockPut(req, rows, touch, resolver)
		case CFDefault, CFEmpty:
			decodeDefaultPut(req, rows, touch)
		default:
			panic(fmt.Sprintf("regioncdc: request targets unknown column family %v", req.CF))
		}
	}

	var out = make([]EventRow, 0, len(order))
	for _, k := range order {
		out = append(out, *rows[k])
	}
	return out
}

func decodeWritePut(req Request, rows map[string]*EventRow, touch func(string), resolver *Resolver) {
	rawKey, commitTs, err := SplitTsSuffix(req.Key)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding write-CF key: %v", err))
	}
	wr, err := DecodeWriteRecord(req.Value)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding WriteRecord: %v", err))
	}
	if wr.WriteType == WriteTypeLock {
		log.WithFields(log.Fields{"key": string(rawKey)}).Debug("skipping unsupported write-CF lock record")
		return
	}

	var row = EventRow{Key: rawKey, StartTs: wr.StartTs, Value: wr.ShortValue}
	if wr.WriteType == WriteTypeRollback {
		row.CommitTs, row.LogType = 0, LogRollback
	} else {
		row.CommitTs, row.LogType, row.OpType = commitTs, LogCommit, opTypeForWrite(wr.WriteType)
	}

	resolver.UntrackLock(wr.StartTs, rawKey)

	var k = string(rawKey)
	if existing, ok := rows[k]; ok {
		if existing.LogType != LogUnknown {
			panic(fmt.Sprintf("regioncdc: duplicate write event for key %q within one batch", k))
		}
		if row.Value == nil {
			row.Value = existing.Value
		}
	}
	touch(k)
	rows[k] = &row
}

func decodeLockPut(req Request, rows map[string]*EventRow, touch func(string), resolver *Resolver) {
	var rawKey = req.Key
	lock, err := DecodeLock(req.Value)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding Lock: %v", err))
	}
	if lock.LockType == LockTypeLock || lock.LockType == LockTypePessimistic {
		log.WithFields(log.Fields{"key": string(rawKey), "lockType": lock.LockType}).
			Debug("skipping unsupported lock-CF record")
		return
	}

	var row = EventRow{Key: rawKey, StartTs: lock.Ts, LogType: LogPrewrite, OpType: opTypeForLock(lock.LockType), Value: lock.ShortValue}

	var k = string(rawKey)
	if existing, ok := rows[k]; ok && existing.LogType == LogUnknown && row.Value == nil {
		row.Value = existing.Value
	}
	touch(k)
	resolver.TrackLock(lock.Ts, rawKey)
	rows[k] = &row
}

func decodeDefaultPut(req Request, rows map[string]*EventRow, touch func(string)) {
	rawKey, _, err := SplitTsSuffix(req.Key)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding default-CF key: %v", err))
	}
	var k = string(rawKey)
	if existing, ok := rows[k]; ok {
		existing.Value = req.Value
		return
	}
	touch(k)
	rows[k] = &EventRow{Key: rawKey, Value: req.Value, LogType: LogUnknown}
}
