package table

import (
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/memory"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
	"reldb/pkg/tuple"
)

// IsVisible decides whether a reader sees one record version. It is a
// pure function of the reader's isolation level, xid, current command
// id, active-transaction view, and the record's header.
//
// Under RepeatableRead and Serializable the active set is the
// transaction's frozen snapshot; under ReadCommitted it is the live
// set at statement start. A record inserted by the reader's own
// current command is never visible, which keeps a statement from
// re-reading its own output.
func IsVisible(iso transaction.IsolationLevel, xid primitives.XID, cid primitives.CID,
	activeXids map[primitives.XID]struct{}, rec *tuple.Record) bool {
	xmin := rec.Header.Xmin
	xmax := rec.Header.Xmax

	visible := true
	switch iso {
	case transaction.RepeatableRead, transaction.Serializable:
		// Deleted, and the deleter committed before this snapshot.
		if rec.Header.Deleted {
			if _, active := activeXids[xmax]; !active && xmax <= xid {
				visible = false
			}
		}
		// Inserter not committed as of the snapshot.
		if _, active := activeXids[xmin]; active || xmin > xid {
			visible = false
		}

	case transaction.ReadCommitted:
		if rec.Header.Deleted {
			_, active := activeXids[xmax]
			if !active || xmax == xid {
				visible = false
			}
		}
		if _, active := activeXids[xmin]; active && xmin != xid {
			visible = false
		}
	}

	// Same transaction, same command: the statement must not see its
	// own inserts.
	if xmin == xid && rec.Header.Cid == cid {
		visible = false
	}

	return visible
}

// Scan is a cursor over a table's page list. Each GetNextRecord call
// advances through the slots of the current page, follows
// next_page_id at page end, and returns the next version visible to
// the caller, or nil at end of table.
type Scan struct {
	pool  *memory.BufferPool
	table *TableHeap
	rid   primitives.Rid
}

// NewScan positions a cursor at rid, normally
// (table.FirstPageID(), 0).
func NewScan(pool *memory.BufferPool, t *TableHeap, rid primitives.Rid) *Scan {
	return &Scan{pool: pool, table: t, rid: rid}
}

// GetNextRecord returns the next visible record, skipping invisible
// versions silently. A nil record means the scan is exhausted.
func (s *Scan) GetNextRecord(xid primitives.XID, iso transaction.IsolationLevel, cid primitives.CID,
	activeXids map[primitives.XID]struct{}) (*tuple.Record, error) {
	if s.rid.PageID == primitives.NullPageID {
		return nil, nil
	}

	for {
		p, err := s.pool.GetPage(s.table.DbOid(), s.table.Oid(), s.rid.PageID)
		if err != nil {
			return nil, err
		}
		// Borrowed frame: keep it pinned while the slot is read so
		// concurrent eviction cannot reassign it mid-read.
		p.Pin()
		sp := page.NewSlottedPage(p)

		if s.rid.SlotID < sp.RecordCount() {
			rec, err := sp.GetRecord(s.rid, s.table.ColumnList())
			p.Unpin()
			if err != nil {
				return nil, err
			}
			s.rid.SlotID++

			if !IsVisible(iso, xid, cid, activeXids, rec) {
				continue
			}
			return rec, nil
		}

		next := sp.NextPageID()
		p.Unpin()
		if next != primitives.NullPageID {
			s.rid = primitives.NewRid(next, 0)
			continue
		}

		s.rid = primitives.NewRid(primitives.NullPageID, 0)
		return nil, nil
	}
}
