package regioncdc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecodeScanBridgesPrewriteCommitRollback reproduces spec scenario 4:
// push scan [Prewrite(a,"b",start=1), Commit(a,"b",start=1,commit=2),
// Rollback(a,start=3), None] and expect exactly the Prewrite, Committed and
// Initialized rows, with the Rollback entirely absent.
func TestDecodeScanBridgesPrewriteCommitRollback(t *testing.T) {
	var batch = ScanBatch{
		{Prewrite: &ScanPrewrite{
			Key:  []byte("a"),
			Lock: EncodeLock(Lock{LockType: LockTypePut, Ts: 1, ShortValue: []byte("b")}),
		}},
		{Commit: &ScanCommit{
			Key:      []byte("a"),
			CommitTs: 2,
			Write:    EncodeWriteRecord(WriteRecord{WriteType: WriteTypePut, StartTs: 1, ShortValue: []byte("b")}),
		}},
		{Commit: &ScanCommit{
			Key:   []byte("a"),
			Write: EncodeWriteRecord(WriteRecord{WriteType: WriteTypeRollback, StartTs: 3}),
		}},
	}

	var rows = decodeScan(batch)

	require.Equal(t, []EventRow{
		{StartTs: 1, CommitTs: 0, Key: []byte("a"), Value: []byte("b"), OpType: OpPut, LogType: LogPrewrite},
		{StartTs: 1, CommitTs: 2, Key: []byte("a"), Value: []byte("b"), OpType: OpPut, LogType: LogCommitted},
		{LogType: LogInitialized},
	}, rows)
}

func TestDecodeScanMergesDefaultValue(t *testing.T) {
	var batch = ScanBatch{
		{Prewrite: &ScanPrewrite{
			Key:     []byte("k"),
			Default: []byte("big"),
			Lock:    EncodeLock(Lock{LockType: LockTypePut, Ts: 5}),
		}},
	}
	var rows = decodeScan(batch)
	require.Len(t, rows, 2)
	require.Equal(t, []byte("big"), rows[0].Value)
}

func TestDecodeScanEmptyYieldsOnlyInitialized(t *testing.T) {
	var rows = decodeScan(nil)
	require.Equal(t, []EventRow{{LogType: LogInitialized}}, rows)
}
