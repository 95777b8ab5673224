package types

import (
	"encoding/binary"
	"io"
	"strings"
)

// StringField represents a variable-length string column value.
// The serialized form is a 4-byte big-endian length followed by the
// raw bytes, so record sizes depend on the stored value.
type StringField struct {
	Value string
}

func NewStringField(value string) *StringField {
	return &StringField{Value: value}
}

func (f *StringField) Serialize(w io.Writer) error {
	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(f.Value)))

	if _, err := w.Write(lengthBytes); err != nil {
		return err
	}
	_, err := io.WriteString(w, f.Value)
	return err
}

func (f *StringField) Compare(op Predicate, other Field) (bool, error) {
	otherString, ok := other.(*StringField)
	if !ok {
		return false, nil
	}
	return compareOrdered(strings.Compare(f.Value, otherString.Value), op)
}

func (f *StringField) Length() uint32 {
	return 4 + uint32(len(f.Value))
}

func (f *StringField) Type() Type {
	return StringType
}

func (f *StringField) Equals(other Field) bool {
	otherString, ok := other.(*StringField)
	if !ok {
		return false
	}
	return f.Value == otherString.Value
}

func (f *StringField) String() string {
	return f.Value
}
