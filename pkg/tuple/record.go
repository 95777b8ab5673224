package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reldb/pkg/primitives"
	"reldb/pkg/types"
	"strings"
)

// RecordHeaderSize is the fixed on-page prefix of every record:
// deleted flag (1), xmin (8), xmax (8), cid (4).
const RecordHeaderSize = 1 + 8 + 8 + 4

// RecordHeader carries the transaction metadata MVCC visibility is
// computed from.
type RecordHeader struct {
	Deleted bool
	Xmin    primitives.XID
	Xmax    primitives.XID
	Cid     primitives.CID
}

// SerializeTo writes the header into the first RecordHeaderSize bytes
// of buf.
func (h *RecordHeader) SerializeTo(buf []byte) {
	if h.Deleted {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	binary.LittleEndian.PutUint64(buf[1:], uint64(h.Xmin))
	binary.LittleEndian.PutUint64(buf[9:], uint64(h.Xmax))
	binary.LittleEndian.PutUint32(buf[17:], uint32(h.Cid))
}

// DeserializeFrom reads the header from the first RecordHeaderSize
// bytes of buf.
func (h *RecordHeader) DeserializeFrom(buf []byte) error {
	if len(buf) < RecordHeaderSize {
		return fmt.Errorf("record header truncated: %d bytes", len(buf))
	}
	h.Deleted = buf[0] != 0
	h.Xmin = primitives.XID(binary.LittleEndian.Uint64(buf[1:]))
	h.Xmax = primitives.XID(binary.LittleEndian.Uint64(buf[9:]))
	h.Cid = primitives.CID(binary.LittleEndian.Uint32(buf[17:]))
	return nil
}

func (h *RecordHeader) String() string {
	return fmt.Sprintf("{deleted: %v, xmin: %d, xmax: %d, cid: %d}", h.Deleted, h.Xmin, h.Xmax, h.Cid)
}

// Record is a row version: the MVCC header followed by one field per
// column of its schema. Records read from a page carry the Rid they
// were read from.
type Record struct {
	TupleDesc *TupleDescription
	Header    RecordHeader
	fields    []types.Field
	Rid       primitives.Rid
	HasRid    bool
}

// NewRecord creates an empty record with the given schema. The header
// starts live (not deleted) with no owning transactions.
func NewRecord(td *TupleDescription) *Record {
	return &Record{
		TupleDesc: td,
		Header:    RecordHeader{Xmin: primitives.NullXID, Xmax: primitives.NullXID},
		fields:    make([]types.Field, td.NumFields()),
	}
}

// NewRecordWithFields creates a record holding the given values, which
// must match the schema in order.
func NewRecordWithFields(td *TupleDescription, fields ...types.Field) (*Record, error) {
	r := NewRecord(td)
	for i, f := range fields {
		if err := r.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Record) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(r.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(r.fields))
	}
	if field != nil {
		expectedType, _ := r.TupleDesc.TypeAtIndex(i)
		if field.Type() != expectedType {
			return fmt.Errorf("field type mismatch at %d: expected %v, got %v",
				i, expectedType, field.Type())
		}
	}
	r.fields[i] = field
	return nil
}

// GetField returns the ith field value. A nil field is a NULL produced
// by an outer join; NULLs never reach storage.
func (r *Record) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(r.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(r.fields))
	}
	return r.fields[i], nil
}

func (r *Record) NumFields() int {
	return len(r.fields)
}

func (r *Record) SetRid(rid primitives.Rid) {
	r.Rid = rid
	r.HasRid = true
}

// Size is the on-page size of the record: header plus every field's
// serialized length.
func (r *Record) Size() uint32 {
	size := uint32(RecordHeaderSize)
	for _, f := range r.fields {
		size += f.Length()
	}
	return size
}

// SerializeTo writes header and fields into buf, which must hold at
// least Size() bytes.
func (r *Record) SerializeTo(buf []byte) error {
	if uint32(len(buf)) < r.Size() {
		return fmt.Errorf("buffer too small for record: %d < %d", len(buf), r.Size())
	}

	r.Header.SerializeTo(buf)

	body := bytes.NewBuffer(buf[RecordHeaderSize:RecordHeaderSize])
	for i, f := range r.fields {
		if f == nil {
			return fmt.Errorf("cannot serialize record with null field %d", i)
		}
		if err := f.Serialize(body); err != nil {
			return fmt.Errorf("failed to serialize field %d: %w", i, err)
		}
	}
	return nil
}

// Serialize writes the record to w in its on-page form.
func (r *Record) Serialize(w io.Writer) error {
	buf := make([]byte, r.Size())
	if err := r.SerializeTo(buf); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

// DeserializeRecord reads a record in its on-page form.
func DeserializeRecord(data []byte, td *TupleDescription) (*Record, error) {
	r := NewRecord(td)
	if err := r.Header.DeserializeFrom(data); err != nil {
		return nil, err
	}

	body := bytes.NewReader(data[RecordHeaderSize:])
	for i := range td.Types {
		fieldType, err := td.TypeAtIndex(i)
		if err != nil {
			return nil, err
		}
		field, err := types.ParseField(body, fieldType)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %d: %w", i, err)
		}
		r.fields[i] = field
	}
	return r, nil
}

// Append concatenates other's fields onto this record, producing the
// combined row a join emits. The result carries no Rid.
func (r *Record) Append(other *Record) *Record {
	combined := NewRecord(Combine(r.TupleDesc, other.TupleDesc))
	copy(combined.fields, r.fields)
	copy(combined.fields[len(r.fields):], other.fields)
	return combined
}

// NullRecord builds a record of the given arity whose fields are all
// NULL, used for the unmatched side of outer joins.
func NullRecord(td *TupleDescription) *Record {
	return NewRecord(td)
}

// Clone creates a copy of this record sharing field values (fields are
// immutable once set).
func (r *Record) Clone() *Record {
	c := NewRecord(r.TupleDesc)
	c.Header = r.Header
	c.Rid = r.Rid
	c.HasRid = r.HasRid
	copy(c.fields, r.fields)
	return c
}

func (r *Record) String() string {
	parts := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		if f == nil {
			parts = append(parts, "null")
		} else {
			parts = append(parts, f.String())
		}
	}
	return strings.Join(parts, "\t")
}
