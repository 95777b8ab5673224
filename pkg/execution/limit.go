package execution

import "reldb/pkg/tuple"

// Limit discards offset records on its first pull, then passes through
// at most count records. A nil count means unlimited.
type Limit struct {
	child  Executor
	offset uint64
	count  *uint64

	toSkip    uint64
	remaining uint64
	unlimited bool
}

func NewLimit(offset, count *uint64, child Executor) *Limit {
	l := &Limit{child: child}
	if offset != nil {
		l.offset = *offset
	}
	l.count = count
	return l
}

func (l *Limit) Init() error {
	if err := l.child.Init(); err != nil {
		return err
	}
	l.toSkip = l.offset
	if l.count == nil {
		l.unlimited = true
	} else {
		l.unlimited = false
		l.remaining = *l.count
	}
	return nil
}

func (l *Limit) Next() (*tuple.Record, error) {
	for l.toSkip > 0 {
		rec, err := l.child.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		l.toSkip--
	}
	l.toSkip = 0

	if !l.unlimited {
		if l.remaining == 0 {
			return nil, nil
		}
		l.remaining--
	}
	return l.child.Next()
}
