package types

import (
	"fmt"
	"io"
)

// Field is a single column value. Implementations serialize themselves
// into the record body and compare against values of the same type.
type Field interface {
	// Serialize writes the binary representation of the value.
	Serialize(w io.Writer) error

	// Compare applies op between this value and other. Comparing
	// against a field of a different type reports false, not an error.
	Compare(op Predicate, other Field) (bool, error)

	// Length is the serialized size in bytes.
	Length() uint32

	Type() Type

	Equals(other Field) bool

	String() string
}

func errUnknownPredicate(op Predicate) error {
	return fmt.Errorf("unknown predicate: %d", int(op))
}
