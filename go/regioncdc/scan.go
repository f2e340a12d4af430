package regioncdc

import "fmt"

// decodeScan implements §4.3: it decodes one downstream's snapshot-scan
// sequence into an ordered slice of EventRows, terminated by the single
// Initialized marker row that bridges the scan to the live tail.
func decodeScan(batch ScanBatch) []EventRow {
	var rows = make([]EventRow, 0, len(batch)+1)

	for _, entry := range batch {
		switch {
		case entry.Prewrite != nil:
			rows = append(rows, decodeScanPrewrite(entry.Prewrite))
		case entry.Commit != nil:
			if row, ok := decodeScanCommit(entry.Commit); ok {
				rows = append(rows, row)
			}
		default:
			panic("regioncdc: scan entry has neither Prewrite nor Commit set")
		}
	}

	rows = append(rows, EventRow{LogType: LogInitialized})
	return rows
}

func decodeScanPrewrite(p *ScanPrewrite) EventRow {
	lock, err := DecodeLock(p.Lock)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding scanned Lock: %v", err))
	}
	var row = EventRow{
		Key:     p.Key,
		StartTs: lock.Ts,
		LogType: LogPrewrite,
		OpType:  opTypeForLock(lock.LockType),
		Value:   lock.ShortValue,
	}
	if row.Value == nil {
		row.Value = p.Default
	}
	return row
}

// decodeScanCommit returns (row, true) unless the write is a Rollback, in
// which case it is discarded entirely per §4.3: the downstream state
// machine needs no explicit rollback once it has no prewrite stored.
func decodeScanCommit(c *ScanCommit) (EventRow, bool) {
	wr, err := DecodeWriteRecord(c.Write)
	if err != nil {
		panic(fmt.Sprintf("regioncdc: decoding scanned WriteRecord: %v", err))
	}
	if wr.WriteType == WriteTypeRollback {
		return EventRow{}, false
	}
	var row = EventRow{
		Key:      c.Key,
		StartTs:  wr.StartTs,
		CommitTs: c.CommitTs,
		LogType:  LogCommitted,
		OpType:   opTypeForWrite(wr.WriteType),
		Value:    wr.ShortValue,
	}
	if row.Value == nil {
		row.Value = c.Default
	}
	return row, true
}
