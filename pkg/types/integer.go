package types

import (
	"encoding/binary"
	"io"
	"strconv"
)

// IntField represents a 64-bit signed integer column value.
type IntField struct {
	Value int64
}

func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

func (f *IntField) Serialize(w io.Writer) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(f.Value))
	_, err := w.Write(buf)
	return err
}

func (f *IntField) Compare(op Predicate, other Field) (bool, error) {
	otherInt, ok := other.(*IntField)
	if !ok {
		return false, nil
	}

	cmp := 0
	switch {
	case f.Value < otherInt.Value:
		cmp = -1
	case f.Value > otherInt.Value:
		cmp = 1
	}
	return compareOrdered(cmp, op)
}

func (f *IntField) Length() uint32 {
	return 8
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) Equals(other Field) bool {
	otherInt, ok := other.(*IntField)
	if !ok {
		return false
	}
	return f.Value == otherInt.Value
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}
