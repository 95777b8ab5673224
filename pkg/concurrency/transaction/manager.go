// Package transaction allocates transaction ids and tracks which
// transactions are active, handing out the snapshots MVCC visibility
// is computed against.
package transaction

import (
	"errors"
	"fmt"
	"sync"

	"reldb/pkg/primitives"
)

// ErrNotActive is returned when an operation references a transaction
// that was never begun or has already finished.
var ErrNotActive = errors.New("transaction not active")

// Manager allocates monotonically increasing xids and maintains the
// active set. A transaction's snapshot is the set of xids active the
// first time GetSnapshot is called for it (itself excluded) and stays
// stable for the transaction's lifetime.
type Manager struct {
	mutex     sync.Mutex
	nextXid   primitives.XID
	active    map[primitives.XID]struct{}
	snapshots map[primitives.XID]map[primitives.XID]struct{}
}

func NewManager() *Manager {
	return &Manager{
		nextXid:   1,
		active:    make(map[primitives.XID]struct{}),
		snapshots: make(map[primitives.XID]map[primitives.XID]struct{}),
	}
}

// Begin allocates the next xid and records it active.
func (m *Manager) Begin() primitives.XID {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	xid := m.nextXid
	m.nextXid++
	m.active[xid] = struct{}{}
	return xid
}

// Commit removes the transaction from the active set.
func (m *Manager) Commit(xid primitives.XID) error {
	return m.finish(xid)
}

// Rollback removes the transaction from the active set.
func (m *Manager) Rollback(xid primitives.XID) error {
	return m.finish(xid)
}

func (m *Manager) finish(xid primitives.XID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.active[xid]; !ok {
		return fmt.Errorf("%w: %d", ErrNotActive, xid)
	}
	delete(m.active, xid)
	delete(m.snapshots, xid)
	return nil
}

// IsActive reports whether the transaction is in the active set.
func (m *Manager) IsActive(xid primitives.XID) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.active[xid]
	return ok
}

// GetSnapshot returns the frozen active set for xid, creating it on
// first call. The transaction itself is not part of its snapshot: its
// own earlier writes are governed by the command-id rule instead.
func (m *Manager) GetSnapshot(xid primitives.XID) map[primitives.XID]struct{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if snap, ok := m.snapshots[xid]; ok {
		return snap
	}

	snap := make(map[primitives.XID]struct{}, len(m.active))
	for active := range m.active {
		if active != xid {
			snap[active] = struct{}{}
		}
	}
	m.snapshots[xid] = snap
	return snap
}

// GetActiveTransactions returns a fresh copy of the live set.
func (m *Manager) GetActiveTransactions() map[primitives.XID]struct{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make(map[primitives.XID]struct{}, len(m.active))
	for xid := range m.active {
		out[xid] = struct{}{}
	}
	return out
}

// SetNextXid raises the allocator during recovery so new transactions
// never reuse an xid seen in the log.
func (m *Manager) SetNextXid(xid primitives.XID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if xid >= m.nextXid {
		m.nextXid = xid + 1
	}
}

// GetNextXid reports the next xid to be allocated.
func (m *Manager) GetNextXid() primitives.XID {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.nextXid
}
