// Package table implements the heap organization of one table: a
// linked list of slotted pages, record-level mutation with write-ahead
// logging, and the MVCC table scan.
package table

import (
	"errors"
	"fmt"

	"reldb/pkg/log"
	"reldb/pkg/memory"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
	"reldb/pkg/tuple"
)

// ErrRecordTooLarge is returned when a record can never fit on a page.
// The statement fails; the transaction may continue.
var ErrRecordTooLarge = errors.New("record too large")

// TableHeap is the heap file of one table. Pages form a singly linked
// list starting at first page 0; a table that has never received a row
// has no pages at all.
type TableHeap struct {
	pool        *memory.BufferPool
	logs        *log.Manager
	oid         primitives.TableID
	dbOid       primitives.DatabaseID
	columnList  *tuple.TupleDescription
	firstPageID primitives.PageNumber
}

// NewTableHeap creates the heap accessor. isEmpty says whether the
// table has any pages on disk; an empty table's first page id is the
// null sentinel until the first insert allocates page 0.
func NewTableHeap(pool *memory.BufferPool, logs *log.Manager, oid primitives.TableID,
	dbOid primitives.DatabaseID, columnList *tuple.TupleDescription, isEmpty bool) *TableHeap {
	first := primitives.PageNumber(0)
	if isEmpty {
		first = primitives.NullPageID
	}
	return &TableHeap{
		pool:        pool,
		logs:        logs,
		oid:         oid,
		dbOid:       dbOid,
		columnList:  columnList,
		firstPageID: first,
	}
}

func (t *TableHeap) Oid() primitives.TableID { return t.oid }

func (t *TableHeap) DbOid() primitives.DatabaseID { return t.dbOid }

func (t *TableHeap) ColumnList() *tuple.TupleDescription { return t.columnList }

// FirstPageID returns the head of the page list. A heap registered as
// empty re-probes the buffer pool on each ask: recovery can
// materialize page 0 behind the catalog's back.
func (t *TableHeap) FirstPageID() primitives.PageNumber {
	if t.firstPageID == primitives.NullPageID {
		if ok, err := t.pool.PageExists(t.dbOid, t.oid, 0); err == nil && ok {
			t.firstPageID = 0
		}
	}
	return t.firstPageID
}

// InsertRecord walks the page list for the first page with room,
// allocating and linking a new page when none has any, and inserts the
// record stamped with xid and cid. With writeLog set it emits NewPage
// and Insert records and stamps the page LSN.
func (t *TableHeap) InsertRecord(rec *tuple.Record, xid primitives.XID, cid primitives.CID, writeLog bool) (primitives.Rid, error) {
	if rec.Size() > page.MaxRecordSize {
		return primitives.Rid{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, rec.Size())
	}

	if t.FirstPageID() == primitives.NullPageID {
		t.firstPageID = 0
		return t.insertIntoNewPage(rec, xid, cid, primitives.NullPageID, 0, writeLog)
	}

	pageID := t.firstPageID
	for {
		p, err := t.pool.GetPage(t.dbOid, t.oid, pageID)
		if err != nil {
			return primitives.Rid{}, err
		}
		// The page is a borrow from a pool-owned frame: pin it so a
		// concurrent session's eviction cannot reassign the frame
		// while it is being read and mutated.
		p.Pin()
		sp := page.NewSlottedPage(p)

		if sp.FreeSpace() >= rec.Size() {
			slotID, err := sp.InsertRecord(rec, xid, cid)
			if err != nil {
				p.Unpin()
				return primitives.Rid{}, err
			}
			rid := primitives.NewRid(pageID, slotID)
			rec.SetRid(rid)
			if writeLog {
				if err := t.logInsert(sp, xid, pageID, slotID); err != nil {
					p.Unpin()
					return primitives.Rid{}, err
				}
			}
			p.Unpin()
			return rid, nil
		}

		if sp.NextPageID() == primitives.NullPageID {
			newPageID := pageID + 1
			sp.SetNextPageID(newPageID)
			p.Unpin()
			return t.insertIntoNewPage(rec, xid, cid, pageID, newPageID, writeLog)
		}
		next := sp.NextPageID()
		p.Unpin()
		pageID = next
	}
}

// insertIntoNewPage allocates and initializes a page and inserts the
// record there, logging the allocation before the insert.
func (t *TableHeap) insertIntoNewPage(rec *tuple.Record, xid primitives.XID, cid primitives.CID,
	prevPageID, pageID primitives.PageNumber, writeLog bool) (primitives.Rid, error) {
	p, err := t.pool.NewPage(t.dbOid, t.oid, pageID)
	if err != nil {
		return primitives.Rid{}, err
	}
	p.Pin()
	defer p.Unpin()
	sp := page.NewSlottedPage(p)
	sp.Init()

	slotID, err := sp.InsertRecord(rec, xid, cid)
	if err != nil {
		return primitives.Rid{}, err
	}
	rid := primitives.NewRid(pageID, slotID)
	rec.SetRid(rid)

	if writeLog {
		if _, err := t.logs.AppendNewPageLog(xid, t.oid, prevPageID, pageID); err != nil {
			return primitives.Rid{}, err
		}
		if err := t.logInsert(sp, xid, pageID, slotID); err != nil {
			return primitives.Rid{}, err
		}
	}
	return rid, nil
}

// logInsert captures the inserted bytes for redo and stamps the page
// with the insert's LSN.
func (t *TableHeap) logInsert(sp *page.SlottedPage, xid primitives.XID, pageID primitives.PageNumber, slotID primitives.SlotID) error {
	raw, offset, err := sp.RawRecord(slotID)
	if err != nil {
		return err
	}
	lsn, err := t.logs.AppendInsertLog(xid, t.oid, pageID, slotID, offset, raw)
	if err != nil {
		return err
	}
	sp.SetPageLSN(lsn)
	return nil
}

// DeleteRecord tombstones the record at rid with the deleting xid,
// logging the deletion when asked.
func (t *TableHeap) DeleteRecord(rid primitives.Rid, xid primitives.XID, writeLog bool) error {
	p, err := t.pool.GetPage(t.dbOid, t.oid, rid.PageID)
	if err != nil {
		return err
	}
	p.Pin()
	defer p.Unpin()
	sp := page.NewSlottedPage(p)

	if err := sp.DeleteRecord(rid.SlotID, xid); err != nil {
		return err
	}
	if writeLog {
		lsn, err := t.logs.AppendDeleteLog(xid, t.oid, rid.PageID, rid.SlotID)
		if err != nil {
			return err
		}
		sp.SetPageLSN(lsn)
	}
	return nil
}

// UpdateRecord is delete plus insert: the old version is tombstoned
// and the new one lands wherever there is room, under a new rid.
func (t *TableHeap) UpdateRecord(rid primitives.Rid, xid primitives.XID, cid primitives.CID,
	rec *tuple.Record, writeLog bool) (primitives.Rid, error) {
	if err := t.DeleteRecord(rid, xid, writeLog); err != nil {
		return primitives.Rid{}, err
	}
	return t.InsertRecord(rec, xid, cid, writeLog)
}

// GetRecord reads the record at rid, visibility unchecked.
func (t *TableHeap) GetRecord(rid primitives.Rid) (*tuple.Record, error) {
	p, err := t.pool.GetPage(t.dbOid, t.oid, rid.PageID)
	if err != nil {
		return nil, err
	}
	p.Pin()
	defer p.Unpin()
	return page.NewSlottedPage(p).GetRecord(rid, t.columnList)
}
