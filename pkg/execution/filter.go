package execution

import (
	"fmt"

	"reldb/pkg/plan"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// Filter passes through only the records its predicate accepts.
type Filter struct {
	predicate plan.Expression
	child     Executor
}

func NewFilter(predicate plan.Expression, child Executor) *Filter {
	return &Filter{predicate: predicate, child: child}
}

func (f *Filter) Init() error {
	return f.child.Init()
}

func (f *Filter) Next() (*tuple.Record, error) {
	for {
		rec, err := f.child.Next()
		if err != nil || rec == nil {
			return rec, err
		}

		v, err := f.predicate.Evaluate(rec)
		if err != nil {
			return nil, fmt.Errorf("predicate evaluation failed: %w", err)
		}
		b, ok := v.(*types.BoolField)
		if !ok {
			return nil, fmt.Errorf("filter predicate %s is not boolean", f.predicate)
		}
		if b.Value {
			return rec, nil
		}
	}
}
