package execution

import "reldb/pkg/tuple"

// Values yields a fixed list of rows, the leaf under an Insert plan
// fed from literals.
type Values struct {
	rows  []*tuple.Record
	index int
}

func NewValues(rows []*tuple.Record) *Values {
	return &Values{rows: rows}
}

func (v *Values) Init() error {
	v.index = 0
	return nil
}

func (v *Values) Next() (*tuple.Record, error) {
	if v.index >= len(v.rows) {
		return nil, nil
	}
	rec := v.rows[v.index]
	v.index++
	return rec, nil
}
