package execution

import (
	"fmt"

	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/plan"
	"reldb/pkg/primitives"
	"reldb/pkg/table"
	"reldb/pkg/tuple"
)

// SeqScan walks a table heap front to back, applying MVCC visibility.
// It takes an intention-shared lock on the table and derives the
// active-transaction view per the statement's isolation level on every
// pull: a frozen snapshot for repeatable read and serializable, the
// live set for read committed.
type SeqScan struct {
	ctx  *Context
	plan *plan.SeqScanNode
	heap *table.TableHeap
	scan *table.Scan
}

func NewSeqScan(ctx *Context, node *plan.SeqScanNode) *SeqScan {
	return &SeqScan{ctx: ctx, plan: node}
}

func (s *SeqScan) Init() error {
	heap, err := s.ctx.Catalog.GetTable(s.plan.TableOid)
	if err != nil {
		return err
	}
	s.heap = heap
	s.scan = table.NewScan(s.ctx.Pool, heap, primitives.NewRid(heap.FirstPageID(), 0))
	return nil
}

func (s *SeqScan) Next() (*tuple.Record, error) {
	if !s.ctx.Locks.LockTable(s.ctx.Xid, lock.IntentionShared, s.plan.TableOid) {
		return nil, fmt.Errorf("%w: IS on table %d", ErrLockConflict, s.plan.TableOid)
	}

	var activeXids map[primitives.XID]struct{}
	switch s.ctx.Isolation {
	case transaction.RepeatableRead, transaction.Serializable:
		activeXids = s.ctx.Txns.GetSnapshot(s.ctx.Xid)
	case transaction.ReadCommitted:
		activeXids = s.ctx.Txns.GetActiveTransactions()
	}

	return s.scan.GetNextRecord(s.ctx.Xid, s.ctx.Isolation, s.ctx.Cid, activeXids)
}
