package execution

import (
	"fmt"

	"reldb/pkg/plan"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// MergeJoin equi-joins two inputs that arrive sorted on the join keys.
// It advances whichever cursor holds the smaller key; on equality it
// buffers the run of right rows sharing the key in lastMatch and emits
// the cross product of the current left row with that run. When the
// next left row repeats the key, the buffered run is replayed instead
// of re-reading the right side.
type MergeJoin struct {
	leftKey  plan.Expression
	rightKey plan.Expression
	left     Executor
	right    Executor

	leftRec   *tuple.Record
	rightRec  *tuple.Record
	lastMatch []*tuple.Record
	index     int
}

func NewMergeJoin(leftKey, rightKey plan.Expression, left, right Executor) *MergeJoin {
	return &MergeJoin{
		leftKey:  leftKey,
		rightKey: rightKey,
		left:     left,
		right:    right,
	}
}

func (j *MergeJoin) Init() error {
	if err := j.left.Init(); err != nil {
		return err
	}
	if err := j.right.Init(); err != nil {
		return err
	}

	var err error
	j.leftRec, err = j.left.Next()
	if err != nil {
		return err
	}
	j.rightRec, err = j.right.Next()
	if err != nil {
		return err
	}
	j.lastMatch = nil
	j.index = 0
	return nil
}

func (j *MergeJoin) Next() (*tuple.Record, error) {
	// Replay the buffered right-side run against the current left row.
	for len(j.lastMatch) > 0 {
		if j.index < len(j.lastMatch) {
			out := j.leftRec.Append(j.lastMatch[j.index])
			j.index++
			return out, nil
		}

		prev := j.leftRec
		var err error
		j.leftRec, err = j.left.Next()
		if err != nil {
			return nil, err
		}
		if j.leftRec == nil {
			j.lastMatch = nil
			break
		}

		same, err := j.sameKey(j.leftKey, j.leftRec, j.leftKey, prev)
		if err != nil {
			return nil, err
		}
		if !same {
			j.lastMatch = nil
		}
		j.index = 0
	}

	for j.leftRec != nil && j.rightRec != nil {
		leftVal, err := j.leftKey.Evaluate(j.leftRec)
		if err != nil {
			return nil, err
		}
		rightVal, err := j.rightKey.Evaluate(j.rightRec)
		if err != nil {
			return nil, err
		}

		less, err := leftVal.Compare(types.LessThan, rightVal)
		if err != nil {
			return nil, err
		}
		if less {
			j.leftRec, err = j.left.Next()
			if err != nil || j.leftRec == nil {
				return nil, err
			}
			continue
		}

		greater, err := leftVal.Compare(types.GreaterThan, rightVal)
		if err != nil {
			return nil, err
		}
		if greater {
			j.rightRec, err = j.right.Next()
			if err != nil || j.rightRec == nil {
				return nil, err
			}
			continue
		}

		// Keys match: collect the whole right-side run for this key.
		out := j.leftRec.Append(j.rightRec)
		j.lastMatch = append(j.lastMatch[:0], j.rightRec)

		j.rightRec, err = j.right.Next()
		if err != nil {
			return nil, err
		}
		for j.rightRec != nil {
			rv, err := j.rightKey.Evaluate(j.rightRec)
			if err != nil {
				return nil, err
			}
			equal, err := rv.Compare(types.Equals, leftVal)
			if err != nil {
				return nil, err
			}
			if !equal {
				break
			}
			j.lastMatch = append(j.lastMatch, j.rightRec)
			j.rightRec, err = j.right.Next()
			if err != nil {
				return nil, err
			}
		}

		j.index = 1
		return out, nil
	}

	return nil, nil
}

func (j *MergeJoin) sameKey(keyA plan.Expression, recA *tuple.Record, keyB plan.Expression, recB *tuple.Record) (bool, error) {
	a, err := keyA.Evaluate(recA)
	if err != nil {
		return false, err
	}
	b, err := keyB.Evaluate(recB)
	if err != nil {
		return false, err
	}
	equal, err := a.Compare(types.Equals, b)
	if err != nil {
		return false, fmt.Errorf("failed to compare merge keys: %w", err)
	}
	return equal, nil
}
