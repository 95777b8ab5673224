package types

// Type identifies the storage type of a column.
type Type int

const (
	IntType Type = iota
	StringType
	BoolType
	FloatType
	DecimalType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "STRING"
	case BoolType:
		return "BOOL"
	case FloatType:
		return "FLOAT"
	case DecimalType:
		return "DECIMAL"
	default:
		return "UNKNOWN"
	}
}

// Predicate is a comparison operator applied between two field values.
type Predicate int

const (
	Equals Predicate = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (p Predicate) String() string {
	switch p {
	case Equals:
		return "="
	case NotEqual:
		return "<>"
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return "UNKNOWN"
	}
}

// compareOrdered maps a three-way comparison result onto a predicate.
func compareOrdered(cmp int, op Predicate) (bool, error) {
	switch op {
	case Equals:
		return cmp == 0, nil
	case NotEqual:
		return cmp != 0, nil
	case LessThan:
		return cmp < 0, nil
	case LessThanOrEqual:
		return cmp <= 0, nil
	case GreaterThan:
		return cmp > 0, nil
	case GreaterThanOrEqual:
		return cmp >= 0, nil
	default:
		return false, errUnknownPredicate(op)
	}
}
