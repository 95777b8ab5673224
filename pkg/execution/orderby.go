package execution

import (
	"fmt"
	"sort"

	"reldb/pkg/plan"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

// OrderBy materializes its input and sorts it by the plan's keys.
// Multi-key ordering is lexicographic: the rows are sorted by the
// first key, then each run of equal first-key values is sorted by the
// second key, and so on. Ascending is the default direction.
type OrderBy struct {
	orderBys []plan.OrderBy
	child    Executor

	sorted []sortItem
	index  int
}

type sortItem struct {
	rec *tuple.Record
	key types.Field
}

func NewOrderBy(orderBys []plan.OrderBy, child Executor) *OrderBy {
	return &OrderBy{orderBys: orderBys, child: child}
}

func (o *OrderBy) Init() error {
	if err := o.child.Init(); err != nil {
		return err
	}
	o.sorted = o.sorted[:0]
	o.index = 0

	for {
		rec, err := o.child.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		o.sorted = append(o.sorted, sortItem{rec: rec})
	}

	// Boundaries of the equal-key runs from the previous sort level;
	// the first level sorts everything as a single run.
	runs := []int{0}

	for _, ob := range o.orderBys {
		for i := range o.sorted {
			key, err := ob.Expr.Evaluate(o.sorted[i].rec)
			if err != nil {
				return fmt.Errorf("failed to evaluate order key: %w", err)
			}
			o.sorted[i].key = key
		}

		op := types.LessThan
		if ob.Direction == plan.OrderDesc {
			op = types.GreaterThan
		}

		var sortErr error
		for r := 0; r < len(runs); r++ {
			start := runs[r]
			end := len(o.sorted)
			if r+1 < len(runs) {
				end = runs[r+1]
			}

			run := o.sorted[start:end]
			sort.SliceStable(run, func(i, j int) bool {
				if sortErr != nil {
					return false
				}
				less, err := run[i].key.Compare(op, run[j].key)
				if err != nil {
					sortErr = err
				}
				return less
			})
		}
		if sortErr != nil {
			return fmt.Errorf("failed to compare order keys: %w", sortErr)
		}

		// Runs for the next key start wherever this key's value
		// changes, and never span a boundary of the current level.
		old := make(map[int]bool, len(runs))
		for _, r := range runs {
			old[r] = true
		}
		next := []int{0}
		for i := 1; i < len(o.sorted); i++ {
			if old[i] || !o.sorted[i].key.Equals(o.sorted[i-1].key) {
				next = append(next, i)
			}
		}
		runs = next
	}

	return nil
}

func (o *OrderBy) Next() (*tuple.Record, error) {
	if o.index >= len(o.sorted) {
		return nil, nil
	}
	rec := o.sorted[o.index].rec
	o.index++
	return rec, nil
}
