package plan

import (
	"fmt"
	"strings"

	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// Expression is a scalar expression evaluated against one record, or
// against a pair of records when it sits in a join condition.
type Expression interface {
	// Evaluate computes the expression over a single record.
	Evaluate(rec *tuple.Record) (types.Field, error)

	// EvaluateJoin computes the expression over the concatenation of
	// a left and a right record without materializing it; column
	// indexes past the left arity address the right record.
	EvaluateJoin(left, right *tuple.Record) (types.Field, error)

	String() string
}

// ColumnValue reads one column. Name is the qualified
// "table.column" form the optimizer classifies predicates by.
type ColumnValue struct {
	Index int
	Name  string
}

func NewColumnValue(index int, name string) *ColumnValue {
	return &ColumnValue{Index: index, Name: name}
}

// TableName returns the qualifier part of the column name.
func (c *ColumnValue) TableName() string {
	if dot := strings.IndexByte(c.Name, '.'); dot >= 0 {
		return c.Name[:dot]
	}
	return c.Name
}

func (c *ColumnValue) Evaluate(rec *tuple.Record) (types.Field, error) {
	return rec.GetField(c.Index)
}

func (c *ColumnValue) EvaluateJoin(left, right *tuple.Record) (types.Field, error) {
	if c.Index < left.NumFields() {
		return left.GetField(c.Index)
	}
	return right.GetField(c.Index - left.NumFields())
}

func (c *ColumnValue) String() string { return c.Name }

// Const is a literal value.
type Const struct {
	Value types.Field
}

func NewConst(value types.Field) *Const {
	return &Const{Value: value}
}

func (c *Const) Evaluate(*tuple.Record) (types.Field, error) { return c.Value, nil }

func (c *Const) EvaluateJoin(*tuple.Record, *tuple.Record) (types.Field, error) {
	return c.Value, nil
}

func (c *Const) String() string { return c.Value.String() }

// Comparison applies a predicate between two sub-expressions and
// yields a boolean.
type Comparison struct {
	Op    types.Predicate
	Left  Expression
	Right Expression
}

func NewComparison(op types.Predicate, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

func (c *Comparison) Evaluate(rec *tuple.Record) (types.Field, error) {
	return c.compare(func(e Expression) (types.Field, error) { return e.Evaluate(rec) })
}

func (c *Comparison) EvaluateJoin(left, right *tuple.Record) (types.Field, error) {
	return c.compare(func(e Expression) (types.Field, error) { return e.EvaluateJoin(left, right) })
}

func (c *Comparison) compare(eval func(Expression) (types.Field, error)) (types.Field, error) {
	lv, err := eval(c.Left)
	if err != nil {
		return nil, err
	}
	rv, err := eval(c.Right)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		// NULL compares to nothing.
		return types.NewBoolField(false), nil
	}

	ok, err := lv.Compare(c.Op, rv)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(ok), nil
}

func (c *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Left, c.Op, c.Right)
}

// LogicType distinguishes conjunction from disjunction.
type LogicType int

const (
	LogicAnd LogicType = iota
	LogicOr
)

// Logic combines two boolean sub-expressions.
type Logic struct {
	LogicType LogicType
	Left      Expression
	Right     Expression
}

func NewLogic(logicType LogicType, left, right Expression) *Logic {
	return &Logic{LogicType: logicType, Left: left, Right: right}
}

func (l *Logic) Evaluate(rec *tuple.Record) (types.Field, error) {
	return l.combine(func(e Expression) (types.Field, error) { return e.Evaluate(rec) })
}

func (l *Logic) EvaluateJoin(left, right *tuple.Record) (types.Field, error) {
	return l.combine(func(e Expression) (types.Field, error) { return e.EvaluateJoin(left, right) })
}

func (l *Logic) combine(eval func(Expression) (types.Field, error)) (types.Field, error) {
	lv, err := evalBool(eval, l.Left)
	if err != nil {
		return nil, err
	}
	rv, err := evalBool(eval, l.Right)
	if err != nil {
		return nil, err
	}

	if l.LogicType == LogicAnd {
		return types.NewBoolField(lv && rv), nil
	}
	return types.NewBoolField(lv || rv), nil
}

func evalBool(eval func(Expression) (types.Field, error), e Expression) (bool, error) {
	v, err := eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(*types.BoolField)
	if !ok {
		return false, fmt.Errorf("expression %s is not boolean", e)
	}
	return b.Value, nil
}

func (l *Logic) String() string {
	op := "AND"
	if l.LogicType == LogicOr {
		op = "OR"
	}
	return fmt.Sprintf("(%s %s %s)", l.Left, op, l.Right)
}
