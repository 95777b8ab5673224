package types

import (
	"io"
	"strconv"
)

// BoolField represents a boolean column value, serialized as one byte.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (f *BoolField) Serialize(w io.Writer) error {
	b := byte(0)
	if f.Value {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func (f *BoolField) Compare(op Predicate, other Field) (bool, error) {
	otherBool, ok := other.(*BoolField)
	if !ok {
		return false, nil
	}

	// false orders before true
	cmp := 0
	switch {
	case !f.Value && otherBool.Value:
		cmp = -1
	case f.Value && !otherBool.Value:
		cmp = 1
	}
	return compareOrdered(cmp, op)
}

func (f *BoolField) Length() uint32 {
	return 1
}

func (f *BoolField) Type() Type {
	return BoolType
}

func (f *BoolField) Equals(other Field) bool {
	otherBool, ok := other.(*BoolField)
	if !ok {
		return false
	}
	return f.Value == otherBool.Value
}

func (f *BoolField) String() string {
	return strconv.FormatBool(f.Value)
}
