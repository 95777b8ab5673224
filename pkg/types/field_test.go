package types

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRoundTrip(t *testing.T) {
	dec, err := decimal.NewFromString("12.50")
	require.NoError(t, err)

	tests := []struct {
		name  string
		field Field
	}{
		{"int", NewIntField(-42)},
		{"int zero", NewIntField(0)},
		{"string", NewStringField("hello world")},
		{"empty string", NewStringField("")},
		{"bool true", NewBoolField(true)},
		{"bool false", NewBoolField(false)},
		{"float", NewFloatField(3.25)},
		{"decimal", NewDecimalField(dec)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.field.Serialize(&buf))
			assert.Equal(t, int(tt.field.Length()), buf.Len())

			parsed, err := ParseField(&buf, tt.field.Type())
			require.NoError(t, err)
			assert.True(t, tt.field.Equals(parsed), "expected %v, got %v", tt.field, parsed)
		})
	}
}

func TestIntFieldCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		op       Predicate
		expected bool
	}{
		{"equal", 5, 5, Equals, true},
		{"not equal false", 5, 5, NotEqual, false},
		{"less", 3, 5, LessThan, true},
		{"less false", 5, 3, LessThan, false},
		{"less or equal on equal", 5, 5, LessThanOrEqual, true},
		{"greater", 7, 5, GreaterThan, true},
		{"greater or equal", 5, 5, GreaterThanOrEqual, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewIntField(tt.a).Compare(tt.op, NewIntField(tt.b))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCompareAcrossTypes(t *testing.T) {
	got, err := NewIntField(1).Compare(Equals, NewStringField("1"))
	require.NoError(t, err)
	assert.False(t, got, "cross-type comparison must be false, not an error")
}

func TestStringFieldCompare(t *testing.T) {
	a, b := NewStringField("apple"), NewStringField("banana")

	less, err := a.Compare(LessThan, b)
	require.NoError(t, err)
	assert.True(t, less)

	greater, err := b.Compare(GreaterThan, a)
	require.NoError(t, err)
	assert.True(t, greater)
}

func TestDecimalFieldExactness(t *testing.T) {
	a, err := NewDecimalFieldFromString("0.1")
	require.NoError(t, err)
	b, err := NewDecimalFieldFromString("0.2")
	require.NoError(t, err)

	sum := NewDecimalField(a.Value.Add(b.Value))
	expected, err := NewDecimalFieldFromString("0.3")
	require.NoError(t, err)
	assert.True(t, sum.Equals(expected))
}

func TestParseFieldUnsupportedType(t *testing.T) {
	_, err := ParseField(bytes.NewReader(nil), Type(99))
	assert.Error(t, err)
}
