package record

import (
	"encoding/binary"
	"fmt"

	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
)

// Insert records one record insertion: where it landed and the exact
// bytes written, so redo can reinstate it without the schema.
type Insert struct {
	base
	TableID    primitives.TableID
	PageID     primitives.PageNumber
	SlotID     primitives.SlotID
	Offset     uint16
	RecordSize uint16
	RecordData []byte
}

func NewInsert(xid primitives.XID, prevLSN primitives.LSN, table primitives.TableID,
	pageID primitives.PageNumber, slotID primitives.SlotID, offset uint16, recordData []byte) *Insert {
	data := make([]byte, len(recordData))
	copy(data, recordData)
	return &Insert{
		base:       base{lsn: primitives.NullLSN, xid: xid, prevLSN: prevLSN},
		TableID:    table,
		PageID:     pageID,
		SlotID:     slotID,
		Offset:     offset,
		RecordSize: uint16(len(recordData)),
		RecordData: data,
	}
}

const insertFixedPayload = 8 + 8 + 2 + 2 + 2

func (r *Insert) Type() LogType { return InsertLog }

func (r *Insert) Size() uint32 {
	return headerSize + insertFixedPayload + uint32(len(r.RecordData)) + checksumSize
}

func (r *Insert) Serialize() []byte {
	payload := make([]byte, insertFixedPayload+len(r.RecordData))
	binary.BigEndian.PutUint64(payload[0:], uint64(r.TableID))
	binary.BigEndian.PutUint64(payload[8:], uint64(r.PageID))
	binary.BigEndian.PutUint16(payload[16:], uint16(r.SlotID))
	binary.BigEndian.PutUint16(payload[18:], r.Offset)
	binary.BigEndian.PutUint16(payload[20:], r.RecordSize)
	copy(payload[insertFixedPayload:], r.RecordData)
	return seal(InsertLog, &r.base, payload)
}

func deserializeInsert(b base, payload []byte) (*Insert, error) {
	if len(payload) < insertFixedPayload {
		return nil, fmt.Errorf("insert log payload truncated: %d bytes", len(payload))
	}
	r := &Insert{
		base:       b,
		TableID:    primitives.TableID(binary.BigEndian.Uint64(payload[0:])),
		PageID:     primitives.PageNumber(binary.BigEndian.Uint64(payload[8:])),
		SlotID:     primitives.SlotID(binary.BigEndian.Uint16(payload[16:])),
		Offset:     binary.BigEndian.Uint16(payload[18:]),
		RecordSize: binary.BigEndian.Uint16(payload[20:]),
	}
	if len(payload) != insertFixedPayload+int(r.RecordSize) {
		return nil, fmt.Errorf("insert log body mismatch: payload %d, record size %d", len(payload), r.RecordSize)
	}
	r.RecordData = make([]byte, r.RecordSize)
	copy(r.RecordData, payload[insertFixedPayload:])
	return r, nil
}

// Undo of an insert tombstones the inserted slot so the aborted row
// version is never visible again.
func (r *Insert) Undo(pool PageFetcher, catalog CatalogReader) error {
	sp, err := fetchSlotted(pool, catalog, r.TableID, r.PageID)
	if err != nil {
		return err
	}
	return sp.DeleteRecord(r.SlotID, r.xid)
}

// Redo reinstates the slot and record bytes exactly as logged, then
// stamps the page with this record's LSN.
func (r *Insert) Redo(pool PageFetcher, catalog CatalogReader) error {
	sp, err := fetchSlotted(pool, catalog, r.TableID, r.PageID)
	if err != nil {
		return err
	}
	sp.RedoInsertRecord(r.SlotID, r.RecordData, r.Offset, r.RecordSize)
	sp.SetPageLSN(r.lsn)
	return nil
}

// Delete records one logical deletion.
type Delete struct {
	base
	TableID primitives.TableID
	PageID  primitives.PageNumber
	SlotID  primitives.SlotID
}

func NewDelete(xid primitives.XID, prevLSN primitives.LSN, table primitives.TableID,
	pageID primitives.PageNumber, slotID primitives.SlotID) *Delete {
	return &Delete{
		base:    base{lsn: primitives.NullLSN, xid: xid, prevLSN: prevLSN},
		TableID: table,
		PageID:  pageID,
		SlotID:  slotID,
	}
}

const deletePayload = 8 + 8 + 2

func (r *Delete) Type() LogType { return DeleteLog }

func (r *Delete) Size() uint32 { return headerSize + deletePayload + checksumSize }

func (r *Delete) Serialize() []byte {
	payload := make([]byte, deletePayload)
	binary.BigEndian.PutUint64(payload[0:], uint64(r.TableID))
	binary.BigEndian.PutUint64(payload[8:], uint64(r.PageID))
	binary.BigEndian.PutUint16(payload[16:], uint16(r.SlotID))
	return seal(DeleteLog, &r.base, payload)
}

func deserializeDelete(b base, payload []byte) (*Delete, error) {
	if len(payload) != deletePayload {
		return nil, fmt.Errorf("delete log payload truncated: %d bytes", len(payload))
	}
	return &Delete{
		base:    b,
		TableID: primitives.TableID(binary.BigEndian.Uint64(payload[0:])),
		PageID:  primitives.PageNumber(binary.BigEndian.Uint64(payload[8:])),
		SlotID:  primitives.SlotID(binary.BigEndian.Uint16(payload[16:])),
	}, nil
}

// Undo clears the tombstone, resurrecting the row version.
func (r *Delete) Undo(pool PageFetcher, catalog CatalogReader) error {
	sp, err := fetchSlotted(pool, catalog, r.TableID, r.PageID)
	if err != nil {
		return err
	}
	return sp.UndoDeleteRecord(r.SlotID)
}

func (r *Delete) Redo(pool PageFetcher, catalog CatalogReader) error {
	sp, err := fetchSlotted(pool, catalog, r.TableID, r.PageID)
	if err != nil {
		return err
	}
	if err := sp.DeleteRecord(r.SlotID, r.xid); err != nil {
		return err
	}
	sp.SetPageLSN(r.lsn)
	return nil
}

// NewPage records the allocation of a heap page and its linkage from
// the previous page in the table's list.
type NewPage struct {
	base
	TableID    primitives.TableID
	PrevPageID primitives.PageNumber
	PageID     primitives.PageNumber
}

func NewNewPage(xid primitives.XID, prevLSN primitives.LSN, table primitives.TableID,
	prevPageID, pageID primitives.PageNumber) *NewPage {
	return &NewPage{
		base:       base{lsn: primitives.NullLSN, xid: xid, prevLSN: prevLSN},
		TableID:    table,
		PrevPageID: prevPageID,
		PageID:     pageID,
	}
}

const newPagePayload = 8 + 8 + 8

func (r *NewPage) Type() LogType { return NewPageLog }

func (r *NewPage) Size() uint32 { return headerSize + newPagePayload + checksumSize }

func (r *NewPage) Serialize() []byte {
	payload := make([]byte, newPagePayload)
	binary.BigEndian.PutUint64(payload[0:], uint64(r.TableID))
	binary.BigEndian.PutUint64(payload[8:], uint64(r.PrevPageID))
	binary.BigEndian.PutUint64(payload[16:], uint64(r.PageID))
	return seal(NewPageLog, &r.base, payload)
}

func deserializeNewPage(b base, payload []byte) (*NewPage, error) {
	if len(payload) != newPagePayload {
		return nil, fmt.Errorf("new page log payload truncated: %d bytes", len(payload))
	}
	return &NewPage{
		base:       b,
		TableID:    primitives.TableID(binary.BigEndian.Uint64(payload[0:])),
		PrevPageID: primitives.PageNumber(binary.BigEndian.Uint64(payload[8:])),
		PageID:     primitives.PageNumber(binary.BigEndian.Uint64(payload[16:])),
	}, nil
}

// Undo of a page allocation is a no-op: the page stays allocated and
// its records are undone individually.
func (r *NewPage) Undo(PageFetcher, CatalogReader) error { return nil }

// Redo recreates and re-initializes the page, and restores the link
// from its predecessor.
func (r *NewPage) Redo(pool PageFetcher, catalog CatalogReader) error {
	db, err := catalog.GetDatabaseOid(r.TableID)
	if err != nil {
		return err
	}

	p, err := pool.NewPage(db, r.TableID, r.PageID)
	if err != nil {
		return err
	}
	sp := page.NewSlottedPage(p)
	sp.Init()
	sp.SetPageLSN(r.lsn)

	if r.PrevPageID != primitives.NullPageID {
		prev, err := pool.GetPage(db, r.TableID, r.PrevPageID)
		if err != nil {
			return err
		}
		page.NewSlottedPage(prev).SetNextPageID(r.PageID)
	}
	return nil
}

func fetchSlotted(pool PageFetcher, catalog CatalogReader, table primitives.TableID, pageID primitives.PageNumber) (*page.SlottedPage, error) {
	db, err := catalog.GetDatabaseOid(table)
	if err != nil {
		return nil, err
	}
	p, err := pool.GetPage(db, table, pageID)
	if err != nil {
		return nil, err
	}
	return page.NewSlottedPage(p), nil
}
