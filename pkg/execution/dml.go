package execution

import (
	"fmt"

	"reldb/pkg/concurrency/lock"
	"reldb/pkg/plan"
	"reldb/pkg/table"
	"reldb/pkg/tuple"
)

// Insert drains its child, inserting every record into the target
// table under an intention-exclusive table lock and an exclusive lock
// on each new rid. It then returns a single {count} record.
type Insert struct {
	ctx      *Context
	plan     *plan.InsertNode
	child    Executor
	heap     *table.TableHeap
	finished bool
}

func NewInsert(ctx *Context, node *plan.InsertNode, child Executor) *Insert {
	return &Insert{ctx: ctx, plan: node, child: child}
}

func (e *Insert) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	heap, err := e.ctx.Catalog.GetTable(e.plan.TableOid)
	if err != nil {
		return err
	}
	e.heap = heap
	e.finished = false
	return nil
}

func (e *Insert) Next() (*tuple.Record, error) {
	if e.finished {
		return nil, nil
	}

	var count int64
	for {
		rec, err := e.child.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}

		tableRec, err := e.reorder(rec)
		if err != nil {
			return nil, err
		}

		if !e.ctx.Locks.LockTable(e.ctx.Xid, lock.IntentionExclusive, e.plan.TableOid) {
			return nil, fmt.Errorf("%w: IX on table %d", ErrLockConflict, e.plan.TableOid)
		}

		rid, err := e.heap.InsertRecord(tableRec, e.ctx.Xid, e.ctx.Cid, true)
		if err != nil {
			return nil, err
		}

		if !e.ctx.Locks.LockRow(e.ctx.Xid, lock.Exclusive, e.plan.TableOid, rid) {
			return nil, fmt.Errorf("%w: X on row %s", ErrLockConflict, rid)
		}
		count++
	}

	e.finished = true
	return countRecord(count), nil
}

// reorder maps the child record's values onto the table's column
// order according to the plan's insert column list. An empty list
// means the child already produces full rows in table order.
func (e *Insert) reorder(rec *tuple.Record) (*tuple.Record, error) {
	columnList := e.heap.ColumnList()
	if len(e.plan.InsertColumns) == 0 {
		out := tuple.NewRecord(columnList)
		for i := 0; i < rec.NumFields(); i++ {
			f, err := rec.GetField(i)
			if err != nil {
				return nil, err
			}
			if err := out.SetField(i, f); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	if len(e.plan.InsertColumns) != rec.NumFields() {
		return nil, fmt.Errorf("insert column count %d does not match record arity %d",
			len(e.plan.InsertColumns), rec.NumFields())
	}

	out := tuple.NewRecord(columnList)
	for i, name := range e.plan.InsertColumns {
		idx, err := columnList.FindFieldIndex(name)
		if err != nil {
			return nil, err
		}
		f, err := rec.GetField(i)
		if err != nil {
			return nil, err
		}
		if err := out.SetField(idx, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete drains its child, tombstoning every produced record under an
// intention-exclusive table lock and an exclusive row lock, and
// returns {count}.
type Delete struct {
	ctx      *Context
	plan     *plan.DeleteNode
	child    Executor
	heap     *table.TableHeap
	finished bool
}

func NewDelete(ctx *Context, node *plan.DeleteNode, child Executor) *Delete {
	return &Delete{ctx: ctx, plan: node, child: child}
}

func (e *Delete) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	heap, err := e.ctx.Catalog.GetTable(e.plan.TableOid)
	if err != nil {
		return err
	}
	e.heap = heap
	e.finished = false
	return nil
}

func (e *Delete) Next() (*tuple.Record, error) {
	if e.finished {
		return nil, nil
	}

	var count int64
	for {
		rec, err := e.child.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if !rec.HasRid {
			return nil, fmt.Errorf("delete input record carries no rid")
		}

		if !e.ctx.Locks.LockTable(e.ctx.Xid, lock.IntentionExclusive, e.plan.TableOid) {
			return nil, fmt.Errorf("%w: IX on table %d", ErrLockConflict, e.plan.TableOid)
		}

		if err := e.heap.DeleteRecord(rec.Rid, e.ctx.Xid, true); err != nil {
			return nil, err
		}

		if !e.ctx.Locks.LockRow(e.ctx.Xid, lock.Exclusive, e.plan.TableOid, rec.Rid) {
			return nil, fmt.Errorf("%w: X on row %s", ErrLockConflict, rec.Rid)
		}
		count++
	}

	e.finished = true
	return countRecord(count), nil
}

// Update rewrites every record its child produces by evaluating the
// update expressions, then delegates to the heap's delete-plus-insert
// update. Both the new rid and the original rid are locked exclusive;
// the original stays locked for two-phase locking completeness even
// though its version is now dead.
type Update struct {
	ctx      *Context
	plan     *plan.UpdateNode
	child    Executor
	heap     *table.TableHeap
	finished bool
}

func NewUpdate(ctx *Context, node *plan.UpdateNode, child Executor) *Update {
	return &Update{ctx: ctx, plan: node, child: child}
}

func (e *Update) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	heap, err := e.ctx.Catalog.GetTable(e.plan.TableOid)
	if err != nil {
		return err
	}
	e.heap = heap
	e.finished = false
	return nil
}

func (e *Update) Next() (*tuple.Record, error) {
	if e.finished {
		return nil, nil
	}

	var count int64
	for {
		rec, err := e.child.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if !rec.HasRid {
			return nil, fmt.Errorf("update input record carries no rid")
		}

		newRec := tuple.NewRecord(e.heap.ColumnList())
		for i, expr := range e.plan.UpdateExprs {
			v, err := expr.Evaluate(rec)
			if err != nil {
				return nil, err
			}
			if err := newRec.SetField(i, v); err != nil {
				return nil, err
			}
		}

		if !e.ctx.Locks.LockTable(e.ctx.Xid, lock.IntentionExclusive, e.plan.TableOid) {
			return nil, fmt.Errorf("%w: IX on table %d", ErrLockConflict, e.plan.TableOid)
		}

		newRid, err := e.heap.UpdateRecord(rec.Rid, e.ctx.Xid, e.ctx.Cid, newRec, true)
		if err != nil {
			return nil, err
		}

		if !e.ctx.Locks.LockRow(e.ctx.Xid, lock.Exclusive, e.plan.TableOid, newRid) {
			return nil, fmt.Errorf("%w: X on row %s", ErrLockConflict, newRid)
		}
		if !e.ctx.Locks.LockRow(e.ctx.Xid, lock.Exclusive, e.plan.TableOid, rec.Rid) {
			return nil, fmt.Errorf("%w: X on row %s", ErrLockConflict, rec.Rid)
		}
		count++
	}

	e.finished = true
	return countRecord(count), nil
}
