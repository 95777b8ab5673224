package lock

import (
	"sync"

	"reldb/pkg/primitives"
)

// Manager keeps a per-table list of granted locks. Lock calls are
// non-blocking: an incompatible request reports false and the executor
// surfaces that as a transaction error. The manager is safe for use
// from multiple sessions.
type Manager struct {
	mutex    sync.Mutex
	locks    map[primitives.TableID][]ResourceLock
	deadlock DeadlockPolicy
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[primitives.TableID][]ResourceLock),
	}
}

// SetDeadlockPolicy stores the deadlock resolution policy. With
// non-blocking acquisition only None has observable effect.
func (m *Manager) SetDeadlockPolicy(policy DeadlockPolicy) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.deadlock = policy
}

// LockTable acquires (or upgrades) a table-granularity lock. It
// reports false when another transaction holds an incompatible
// table lock.
func (m *Manager) LockTable(xid primitives.XID, mode Mode, table primitives.TableID) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entries := m.locks[table]
	for _, entry := range entries {
		if entry.Granularity != TableGranularity {
			continue
		}
		if entry.Xid != xid && !Compatible(entry.Mode, mode) {
			return false
		}
	}

	for i, entry := range entries {
		if entry.Granularity == TableGranularity && entry.Xid == xid {
			entries[i].Mode = Upgrade(entry.Mode, mode)
			return true
		}
	}

	m.locks[table] = append(entries, ResourceLock{
		Mode:        mode,
		Granularity: TableGranularity,
		Xid:         xid,
	})
	return true
}

// LockRow acquires (or upgrades) a row-granularity lock. Callers are
// expected to hold an appropriate intention lock on the table first;
// the executors do. It reports false when another transaction holds an
// incompatible lock on the same row.
func (m *Manager) LockRow(xid primitives.XID, mode Mode, table primitives.TableID, rid primitives.Rid) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entries := m.locks[table]
	for _, entry := range entries {
		if entry.Granularity != RowGranularity || !entry.Rid.Equals(rid) {
			continue
		}
		if entry.Xid != xid && !Compatible(entry.Mode, mode) {
			return false
		}
	}

	for i, entry := range entries {
		if entry.Granularity == RowGranularity && entry.Rid.Equals(rid) && entry.Xid == xid {
			entries[i].Mode = Upgrade(entry.Mode, mode)
			return true
		}
	}

	m.locks[table] = append(entries, ResourceLock{
		Mode:        mode,
		Granularity: RowGranularity,
		Xid:         xid,
		Rid:         rid,
	})
	return true
}

// ReleaseLocks drops every lock the transaction holds, across all
// objects. Called at commit and rollback.
func (m *Manager) ReleaseLocks(xid primitives.XID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for table, entries := range m.locks {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.Xid != xid {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(m.locks, table)
		} else {
			m.locks[table] = kept
		}
	}
}

// HeldLocks returns a copy of the locks a transaction currently holds,
// for inspection in tests and diagnostics.
func (m *Manager) HeldLocks(xid primitives.XID) []ResourceLock {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var out []ResourceLock
	for _, entries := range m.locks {
		for _, entry := range entries {
			if entry.Xid == xid {
				out = append(out, entry)
			}
		}
	}
	return out
}
