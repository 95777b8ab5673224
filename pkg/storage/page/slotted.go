package page

import (
	"encoding/binary"
	"errors"
	"fmt"

	"reldb/pkg/primitives"
	"reldb/pkg/tuple"
)

// Page header layout, in order:
//
//	page_lsn     uint64  LSN of the last log record affecting this page
//	next_page_id uint64  link to the next heap page (NullPageID at end)
//	lower        uint16  offset where the next slot entry is written
//	upper        uint16  offset where the next record body starts
//
// Slots grow upward from HeaderSize; record bodies grow downward from
// PageSize. Free space is the gap between them.
const (
	pageLSNOffset  = 0
	nextPageOffset = 8
	lowerOffset    = 16
	upperOffset    = 18

	// HeaderSize is the fixed page header size.
	HeaderSize = 20

	// SlotSize is the size of one slot entry: offset and size, both uint16.
	SlotSize = 4
)

// MaxRecordSize is the largest record a page can ever hold: a full
// page minus the header and one slot.
const MaxRecordSize = PageSize - HeaderSize - SlotSize

var (
	// ErrNoSpace is returned when a record does not fit in the page's
	// free space.
	ErrNoSpace = errors.New("not enough free space on page")

	// ErrCorruption signals an impossible page state (lower past
	// upper, slot outside the page). It is fatal; recovery refuses to
	// proceed over a corrupt page.
	ErrCorruption = errors.New("page corruption detected")
)

// Slot locates one record body within the page.
type Slot struct {
	Offset uint16
	Size   uint16
}

// SlottedPage interprets a buffer frame as a heap table page. It is a
// view: all state lives in the frame's bytes, so two SlottedPages over
// the same frame observe each other's writes.
type SlottedPage struct {
	page *Page
	data []byte
}

func NewSlottedPage(p *Page) *SlottedPage {
	return &SlottedPage{page: p, data: p.Data()}
}

// Init formats the frame as an empty page: zero LSN, no next page,
// slots start at HeaderSize, records start at PageSize.
func (sp *SlottedPage) Init() {
	binary.LittleEndian.PutUint64(sp.data[pageLSNOffset:], 0)
	binary.LittleEndian.PutUint64(sp.data[nextPageOffset:], uint64(primitives.NullPageID))
	binary.LittleEndian.PutUint16(sp.data[lowerOffset:], HeaderSize)
	binary.LittleEndian.PutUint16(sp.data[upperOffset:], PageSize)
	sp.page.SetDirty()
}

func (sp *SlottedPage) PageLSN() primitives.LSN {
	return primitives.LSN(binary.LittleEndian.Uint64(sp.data[pageLSNOffset:]))
}

func (sp *SlottedPage) SetPageLSN(lsn primitives.LSN) {
	binary.LittleEndian.PutUint64(sp.data[pageLSNOffset:], uint64(lsn))
	sp.page.SetDirty()
}

func (sp *SlottedPage) NextPageID() primitives.PageNumber {
	return primitives.PageNumber(binary.LittleEndian.Uint64(sp.data[nextPageOffset:]))
}

func (sp *SlottedPage) SetNextPageID(pageID primitives.PageNumber) {
	binary.LittleEndian.PutUint64(sp.data[nextPageOffset:], uint64(pageID))
	sp.page.SetDirty()
}

func (sp *SlottedPage) Lower() uint16 {
	return binary.LittleEndian.Uint16(sp.data[lowerOffset:])
}

func (sp *SlottedPage) Upper() uint16 {
	return binary.LittleEndian.Uint16(sp.data[upperOffset:])
}

func (sp *SlottedPage) setLower(v uint16) {
	binary.LittleEndian.PutUint16(sp.data[lowerOffset:], v)
}

func (sp *SlottedPage) setUpper(v uint16) {
	binary.LittleEndian.PutUint16(sp.data[upperOffset:], v)
}

// RecordCount is the number of slots, tombstoned ones included. Slots
// are append-only within a page.
func (sp *SlottedPage) RecordCount() primitives.SlotID {
	return primitives.SlotID((sp.Lower() - HeaderSize) / SlotSize)
}

// FreeSpace is the room left for one more record and its slot entry,
// clamped at zero.
func (sp *SlottedPage) FreeSpace() uint32 {
	lower, upper := uint32(sp.Lower()), uint32(sp.Upper())
	if upper < lower+SlotSize {
		return 0
	}
	return upper - lower - SlotSize
}

func (sp *SlottedPage) slot(id primitives.SlotID) Slot {
	base := HeaderSize + uint32(id)*SlotSize
	return Slot{
		Offset: binary.LittleEndian.Uint16(sp.data[base:]),
		Size:   binary.LittleEndian.Uint16(sp.data[base+2:]),
	}
}

func (sp *SlottedPage) setSlot(id primitives.SlotID, s Slot) {
	base := HeaderSize + uint32(id)*SlotSize
	binary.LittleEndian.PutUint16(sp.data[base:], s.Offset)
	binary.LittleEndian.PutUint16(sp.data[base+2:], s.Size)
}

// InsertRecord stamps the record's xmin and cid, appends a slot, and
// writes the record body at the new upper. Returns the slot id.
func (sp *SlottedPage) InsertRecord(rec *tuple.Record, xid primitives.XID, cid primitives.CID) (primitives.SlotID, error) {
	rec.Header.Xmin = xid
	rec.Header.Xmax = primitives.NullXID
	rec.Header.Cid = cid
	rec.Header.Deleted = false

	size := rec.Size()
	if size > sp.FreeSpace() {
		return 0, fmt.Errorf("%w: record %d > free %d", ErrNoSpace, size, sp.FreeSpace())
	}

	slotID := sp.RecordCount()
	upper := sp.Upper() - uint16(size)
	sp.setUpper(upper)
	sp.setLower(sp.Lower() + SlotSize)
	sp.setSlot(slotID, Slot{Offset: upper, Size: uint16(size)})

	if err := rec.SerializeTo(sp.data[upper : upper+uint16(size)]); err != nil {
		return 0, err
	}
	sp.page.SetDirty()
	return slotID, nil
}

// DeleteRecord tombstones the slot in place: the record's deleted flag
// is set and its xmax stamped with the deleting transaction. The slot
// itself stays; deletion is logical.
func (sp *SlottedPage) DeleteRecord(slotID primitives.SlotID, xid primitives.XID) error {
	offset, err := sp.recordOffset(slotID)
	if err != nil {
		return err
	}
	sp.data[offset] = 1
	binary.LittleEndian.PutUint64(sp.data[offset+1+8:], uint64(xid))
	sp.page.SetDirty()
	return nil
}

// UndoDeleteRecord clears the tombstone and resets xmax, reversing
// DeleteRecord during rollback.
func (sp *SlottedPage) UndoDeleteRecord(slotID primitives.SlotID) error {
	offset, err := sp.recordOffset(slotID)
	if err != nil {
		return err
	}
	sp.data[offset] = 0
	binary.LittleEndian.PutUint64(sp.data[offset+1+8:], uint64(primitives.NullXID))
	sp.page.SetDirty()
	return nil
}

// UpdateRecordInPlace rewrites the record bytes at the slot's existing
// offset. Recovery use only; the caller guarantees the sizes match.
func (sp *SlottedPage) UpdateRecordInPlace(rec *tuple.Record, slotID primitives.SlotID) error {
	s := sp.slot(slotID)
	if err := sp.checkSlotBounds(s); err != nil {
		return err
	}
	if err := rec.SerializeTo(sp.data[s.Offset : s.Offset+s.Size]); err != nil {
		return err
	}
	sp.page.SetDirty()
	return nil
}

// RedoInsertRecord reinstates a logged insert exactly: slot entry,
// record bytes, and the lower/upper pointers.
func (sp *SlottedPage) RedoInsertRecord(slotID primitives.SlotID, raw []byte, offset, size uint16) {
	sp.setUpper(sp.Upper() - size)
	sp.setLower(sp.Lower() + SlotSize)
	sp.setSlot(slotID, Slot{Offset: offset, Size: size})
	copy(sp.data[offset:offset+size], raw[:size])
	sp.page.SetDirty()
}

// GetRecord deserializes the record at rid into a Record carrying that
// rid.
func (sp *SlottedPage) GetRecord(rid primitives.Rid, td *tuple.TupleDescription) (*tuple.Record, error) {
	s := sp.slot(rid.SlotID)
	if err := sp.checkSlotBounds(s); err != nil {
		return nil, err
	}

	rec, err := tuple.DeserializeRecord(sp.data[s.Offset:s.Offset+s.Size], td)
	if err != nil {
		return nil, fmt.Errorf("failed to read record at %s: %w", rid, err)
	}
	rec.SetRid(rid)
	return rec, nil
}

// RawRecord returns the serialized bytes and page offset of a slot's
// record, which is what the insert log captures for redo.
func (sp *SlottedPage) RawRecord(slotID primitives.SlotID) ([]byte, uint16, error) {
	s := sp.slot(slotID)
	if err := sp.checkSlotBounds(s); err != nil {
		return nil, 0, err
	}
	return sp.data[s.Offset : s.Offset+s.Size], s.Offset, nil
}

func (sp *SlottedPage) recordOffset(slotID primitives.SlotID) (uint16, error) {
	s := sp.slot(slotID)
	if err := sp.checkSlotBounds(s); err != nil {
		return 0, err
	}
	return s.Offset, nil
}

func (sp *SlottedPage) checkSlotBounds(s Slot) error {
	if s.Offset < HeaderSize || uint32(s.Offset)+uint32(s.Size) > PageSize {
		return fmt.Errorf("%w: slot [%d,%d) outside page", ErrCorruption, s.Offset, uint32(s.Offset)+uint32(s.Size))
	}
	return nil
}

// Validate checks the page's structural invariants and returns
// ErrCorruption when any is violated.
func (sp *SlottedPage) Validate() error {
	lower, upper := sp.Lower(), sp.Upper()
	if lower < HeaderSize {
		return fmt.Errorf("%w: lower %d before header end", ErrCorruption, lower)
	}
	if upper < lower {
		return fmt.Errorf("%w: upper %d < lower %d", ErrCorruption, upper, lower)
	}
	if uint32(upper) > PageSize {
		return fmt.Errorf("%w: upper %d past page end", ErrCorruption, upper)
	}
	for i := primitives.SlotID(0); i < sp.RecordCount(); i++ {
		if err := sp.checkSlotBounds(sp.slot(i)); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

func (sp *SlottedPage) String() string {
	return fmt.Sprintf("TablePage[lsn=%d next=%d lower=%d upper=%d records=%d]",
		sp.PageLSN(), sp.NextPageID(), sp.Lower(), sp.Upper(), sp.RecordCount())
}
