package types

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// DecimalField represents an exact numeric column value. It is
// serialized in its text form (length-prefixed like strings) so no
// precision is lost on the round trip through a page.
type DecimalField struct {
	Value decimal.Decimal
}

func NewDecimalField(value decimal.Decimal) *DecimalField {
	return &DecimalField{Value: value}
}

// NewDecimalFieldFromString parses a decimal literal such as "12.50".
func NewDecimalFieldFromString(value string) (*DecimalField, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal literal %q: %w", value, err)
	}
	return &DecimalField{Value: d}, nil
}

func (f *DecimalField) Serialize(w io.Writer) error {
	text := f.Value.String()

	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(text)))

	if _, err := w.Write(lengthBytes); err != nil {
		return err
	}
	_, err := io.WriteString(w, text)
	return err
}

func (f *DecimalField) Compare(op Predicate, other Field) (bool, error) {
	otherDecimal, ok := other.(*DecimalField)
	if !ok {
		return false, nil
	}
	return compareOrdered(f.Value.Cmp(otherDecimal.Value), op)
}

func (f *DecimalField) Length() uint32 {
	return 4 + uint32(len(f.Value.String()))
}

func (f *DecimalField) Type() Type {
	return DecimalType
}

func (f *DecimalField) Equals(other Field) bool {
	otherDecimal, ok := other.(*DecimalField)
	if !ok {
		return false
	}
	return f.Value.Equal(otherDecimal.Value)
}

func (f *DecimalField) String() string {
	return f.Value.String()
}
