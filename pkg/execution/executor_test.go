package execution_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"reldb/pkg/catalog"
	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/execution"
	"reldb/pkg/log"
	"reldb/pkg/memory"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// sliceExec feeds a fixed set of records, the way a child operator
// would.
type sliceExec struct {
	records []*tuple.Record
	index   int
}

func newSliceExec(records ...*tuple.Record) *sliceExec {
	return &sliceExec{records: records}
}

func (s *sliceExec) Init() error {
	s.index = 0
	return nil
}

func (s *sliceExec) Next() (*tuple.Record, error) {
	if s.index >= len(s.records) {
		return nil, nil
	}
	rec := s.records[s.index]
	s.index++
	return rec, nil
}

func drain(t *testing.T, e execution.Executor) []*tuple.Record {
	t.Helper()
	var out []*tuple.Record
	for {
		rec, err := e.Next()
		require.NoError(t, err)
		if rec == nil {
			return out
		}
		out = append(out, rec)
	}
}

// execHarness assembles the full stack one statement needs.
type execHarness struct {
	pool    *memory.BufferPool
	logs    *log.Manager
	txns    *transaction.Manager
	locks   *lock.Manager
	catalog *catalog.MemoryCatalog
}

func newExecHarness(t *testing.T) *execHarness {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	txns := transaction.NewManager()
	logs, err := log.NewManager(dm, txns)
	require.NoError(t, err)
	pool := memory.NewBufferPool(16, dm)
	pool.SetLogFlusher(logs)
	logs.SetBufferPool(pool)

	cat := catalog.NewMemoryCatalog(pool, logs, dm)
	logs.SetCatalog(cat)

	return &execHarness{
		pool:    pool,
		logs:    logs,
		txns:    txns,
		locks:   lock.NewManager(),
		catalog: cat,
	}
}

func (h *execHarness) context(xid primitives.XID, cid primitives.CID, iso transaction.IsolationLevel) *execution.Context {
	return &execution.Context{
		Catalog:   h.catalog,
		Locks:     h.locks,
		Txns:      h.txns,
		Pool:      h.pool,
		Xid:       xid,
		Cid:       cid,
		Isolation: iso,
	}
}

// begin starts a transaction in both the transaction manager and the
// log.
func (h *execHarness) begin(t *testing.T) primitives.XID {
	t.Helper()
	xid := h.txns.Begin()
	_, err := h.logs.AppendBeginLog(xid)
	require.NoError(t, err)
	return xid
}

func (h *execHarness) commit(t *testing.T, xid primitives.XID) {
	t.Helper()
	_, err := h.logs.AppendCommitLog(xid)
	require.NoError(t, err)
	require.NoError(t, h.txns.Commit(xid))
	h.locks.ReleaseLocks(xid)
}

var twoColDesc = tuple.MustTupleDesc(
	[]types.Type{types.IntType, types.IntType},
	[]string{"t.a", "t.b"},
)

func rowAB(t *testing.T, a, b int64) *tuple.Record {
	t.Helper()
	rec, err := tuple.NewRecordWithFields(twoColDesc, types.NewIntField(a), types.NewIntField(b))
	require.NoError(t, err)
	return rec
}

func intsOf(t *testing.T, recs []*tuple.Record, idx int) []int64 {
	t.Helper()
	out := make([]int64, 0, len(recs))
	for _, rec := range recs {
		f, err := rec.GetField(idx)
		require.NoError(t, err)
		out = append(out, f.(*types.IntField).Value)
	}
	return out
}
