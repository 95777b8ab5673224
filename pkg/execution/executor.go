// Package execution implements the Volcano-model physical operators.
// Every executor is an iterator: Init prepares (or resets) it, and
// each Next call produces one record, with nil signalling end of
// stream.
package execution

import (
	"errors"
	"fmt"

	"reldb/pkg/catalog"
	"reldb/pkg/concurrency/lock"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/memory"
	"reldb/pkg/plan"
	"reldb/pkg/primitives"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// ErrLockConflict is raised when a lock acquisition fails. The
// statement fails and the caller is expected to roll the transaction
// back.
var ErrLockConflict = errors.New("lock conflict")

// Executor is the iterator protocol every physical operator speaks.
type Executor interface {
	// Init is called once before the first Next; calling it again
	// resets the iterator.
	Init() error

	// Next returns the next record, or nil at end of stream.
	Next() (*tuple.Record, error)
}

// Context carries everything an executor needs about its statement:
// the services and the transaction it runs under.
type Context struct {
	Catalog   catalog.Catalog
	Locks     *lock.Manager
	Txns      *transaction.Manager
	Pool      *memory.BufferPool
	Xid       primitives.XID
	Cid       primitives.CID
	Isolation transaction.IsolationLevel
}

// countDesc is the schema of the single summary record DML executors
// return.
var countDesc = tuple.MustTupleDesc([]types.Type{types.IntType}, []string{"count"})

func countRecord(count int64) *tuple.Record {
	rec, _ := tuple.NewRecordWithFields(countDesc, types.NewIntField(count))
	return rec
}

// Build walks a plan tree and assembles the matching executor tree.
func Build(ctx *Context, node plan.Node) (Executor, error) {
	switch n := node.(type) {
	case *plan.SeqScanNode:
		return NewSeqScan(ctx, n), nil

	case *plan.ValuesNode:
		return NewValues(n.Rows), nil

	case *plan.FilterNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewFilter(n.Predicate, child), nil

	case *plan.InsertNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewInsert(ctx, n, child), nil

	case *plan.DeleteNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewDelete(ctx, n, child), nil

	case *plan.UpdateNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewUpdate(ctx, n, child), nil

	case *plan.LimitNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewLimit(n.Offset, n.Count, child), nil

	case *plan.OrderByNode:
		child, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		return NewOrderBy(n.OrderBys, child), nil

	case *plan.NestedLoopJoinNode:
		left, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		right, err := Build(ctx, n.Children()[1])
		if err != nil {
			return nil, err
		}
		return NewNestedLoopJoin(n.JoinType, n.JoinCondition, left, right), nil

	case *plan.MergeJoinNode:
		left, err := Build(ctx, n.Children()[0])
		if err != nil {
			return nil, err
		}
		right, err := Build(ctx, n.Children()[1])
		if err != nil {
			return nil, err
		}
		return NewMergeJoin(n.LeftKey, n.RightKey, left, right), nil

	default:
		return nil, fmt.Errorf("no executor for plan node type %d", node.GetType())
	}
}
