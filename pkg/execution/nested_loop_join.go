package execution

import (
	"fmt"

	"reldb/pkg/plan"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// NestedLoopJoin joins its children pairwise. The right side is
// materialized once in Init; the outer loop walks the left input and
// the inner loop walks the buffered right rows. For LEFT joins an
// unmatched left row is emitted extended with nulls of the right
// arity; for RIGHT and FULL joins each right row carries a matched bit
// and the unmatched ones are emitted, extended with nulls of the left
// arity, after the left side exhausts.
type NestedLoopJoin struct {
	joinType  plan.JoinType
	condition plan.Expression
	left      Executor
	right     Executor

	rightRows    []*tuple.Record
	rightMatched []bool

	leftRec     *tuple.Record
	leftArity   int
	leftDesc    *tuple.TupleDescription
	leftMatched bool
	rightIndex  int
	drainIndex  int
	leftDone    bool
}

func NewNestedLoopJoin(joinType plan.JoinType, condition plan.Expression, left, right Executor) *NestedLoopJoin {
	return &NestedLoopJoin{
		joinType:  joinType,
		condition: condition,
		left:      left,
		right:     right,
	}
}

func (j *NestedLoopJoin) Init() error {
	if err := j.left.Init(); err != nil {
		return err
	}
	if err := j.right.Init(); err != nil {
		return err
	}

	j.rightRows = j.rightRows[:0]
	for {
		rec, err := j.right.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		j.rightRows = append(j.rightRows, rec)
	}
	j.rightMatched = make([]bool, len(j.rightRows))

	j.leftRec = nil
	j.leftArity = 0
	j.leftDesc = nil
	j.leftMatched = false
	j.rightIndex = 0
	j.drainIndex = 0
	j.leftDone = false
	return nil
}

func (j *NestedLoopJoin) Next() (*tuple.Record, error) {
	for !j.leftDone {
		if j.leftRec == nil {
			rec, err := j.left.Next()
			if err != nil {
				return nil, err
			}
			if rec == nil {
				j.leftDone = true
				break
			}
			j.leftRec = rec
			j.leftArity = rec.NumFields()
			j.leftDesc = rec.TupleDesc
			j.leftMatched = false
			j.rightIndex = 0
		}

		for j.rightIndex < len(j.rightRows) {
			rightRec := j.rightRows[j.rightIndex]
			match, err := j.matches(j.leftRec, rightRec)
			if err != nil {
				return nil, err
			}
			idx := j.rightIndex
			j.rightIndex++
			if match {
				j.leftMatched = true
				j.rightMatched[idx] = true
				return j.leftRec.Append(rightRec), nil
			}
		}

		// Inner side exhausted for this left row.
		leftRec, leftMatched := j.leftRec, j.leftMatched
		j.leftRec = nil

		emitNull := j.joinType == plan.LeftJoin || j.joinType == plan.FullJoin
		if emitNull && !leftMatched && len(j.rightRows) > 0 {
			return leftRec.Append(tuple.NullRecord(j.rightRows[0].TupleDesc)), nil
		}
	}

	// Left side exhausted: emit unmatched right rows for RIGHT/FULL.
	emitRight := j.joinType == plan.RightJoin || j.joinType == plan.FullJoin
	if emitRight && j.leftArity > 0 {
		for j.drainIndex < len(j.rightRows) {
			idx := j.drainIndex
			j.drainIndex++
			if !j.rightMatched[idx] {
				return tuple.NullRecord(j.leftDesc).Append(j.rightRows[idx]), nil
			}
		}
	}
	return nil, nil
}

// matches evaluates the join condition over a candidate pair. A nil
// condition degenerates to a cross join.
func (j *NestedLoopJoin) matches(left, right *tuple.Record) (bool, error) {
	if j.condition == nil {
		return true, nil
	}
	v, err := j.condition.EvaluateJoin(left, right)
	if err != nil {
		return false, err
	}
	b, ok := v.(*types.BoolField)
	if !ok {
		return false, fmt.Errorf("join condition %s is not boolean", j.condition)
	}
	return b.Value, nil
}
