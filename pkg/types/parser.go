package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"
)

// ParseField reads one serialized field of the given type from r.
// It is the inverse of Field.Serialize.
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	switch fieldType {
	case IntType:
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return NewIntField(int64(v)), nil

	case StringType:
		s, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		return NewStringField(s), nil

	case BoolType:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, fmt.Errorf("failed to read bool field: %w", err)
		}
		return NewBoolField(b[0] != 0), nil

	case FloatType:
		v, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return NewFloatField(math.Float64frombits(v)), nil

	case DecimalType:
		s, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt decimal field %q: %w", s, err)
		}
		return NewDecimalField(d), nil

	default:
		return nil, fmt.Errorf("unsupported field type: %v", fieldType)
	}
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read field bytes: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func readLengthPrefixed(r io.Reader) (string, error) {
	var lengthBytes [4]byte
	if _, err := io.ReadFull(r, lengthBytes[:]); err != nil {
		return "", fmt.Errorf("failed to read field length: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBytes[:])
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("failed to read field bytes: %w", err)
	}
	return string(data), nil
}
