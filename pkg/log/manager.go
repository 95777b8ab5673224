// Package log implements the write-ahead log: LSN allocation, the log
// buffer, the active transaction and dirty page tables, checkpoints,
// transaction rollback, and ARIES-style crash recovery.
package log

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/log/record"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
)

var (
	// ErrATTInvariant reports an append for a transaction the ATT does
	// not know (or a duplicate Begin). It indicates a driver bug and
	// is fatal.
	ErrATTInvariant = errors.New("active transaction table invariant violated")
)

// Manager owns the log stream. LSNs are byte offsets allocated with an
// atomic fetch-add so concurrent writers can append; the buffer, ATT,
// and DPT are guarded by one mutex and mutated only through the
// manager's entry points.
type Manager struct {
	disk *disk.DiskManager
	txns *transaction.Manager

	nextLSN atomic.Uint64

	mutex      sync.Mutex
	flushedLSN primitives.LSN
	buffer     []record.LogRecord
	att        map[primitives.XID]primitives.LSN
	dpt        map[primitives.PageKey]primitives.LSN

	// Set after construction; the buffer pool and log manager
	// reference each other.
	pool    record.PageFetcher
	catalog record.CatalogReader

	recoveryStart primitives.LSN
}

func NewManager(dm *disk.DiskManager, txns *transaction.Manager) (*Manager, error) {
	m := &Manager{
		disk:       dm,
		txns:       txns,
		flushedLSN: primitives.NullLSN,
		att:        make(map[primitives.XID]primitives.LSN),
		dpt:        make(map[primitives.PageKey]primitives.LSN),
	}

	next, ok, err := dm.ReadNextLSN()
	if err != nil {
		return nil, err
	}
	if !ok {
		next = primitives.FirstLSN
	}
	m.nextLSN.Store(uint64(next))
	if next > primitives.FirstLSN {
		m.flushedLSN = next - 1
	}
	return m, nil
}

// SetBufferPool wires in the buffer pool used by undo and redo.
func (m *Manager) SetBufferPool(pool record.PageFetcher) { m.pool = pool }

// SetCatalog wires in the catalog used to resolve database oids.
func (m *Manager) SetCatalog(catalog record.CatalogReader) { m.catalog = catalog }

// GetNextLSN reports the first unallocated LSN.
func (m *Manager) GetNextLSN() primitives.LSN {
	return primitives.LSN(m.nextLSN.Load())
}

// FlushedLSN reports the highest LSN known durable.
func (m *Manager) FlushedLSN() primitives.LSN {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.flushedLSN
}

// allocate reserves Size bytes of the log stream for rec and stamps
// its LSN.
func (m *Manager) allocate(rec record.LogRecord) primitives.LSN {
	size := uint64(rec.Size())
	lsn := primitives.LSN(m.nextLSN.Add(size) - size)
	rec.SetLSN(lsn)
	return lsn
}

// AppendBeginLog initializes the transaction's ATT entry; the xid must
// not already have one.
func (m *Manager) AppendBeginLog(xid primitives.XID) (primitives.LSN, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.att[xid]; ok {
		return 0, fmt.Errorf("%w: %d already in ATT", ErrATTInvariant, xid)
	}

	rec := record.NewBegin(xid)
	lsn := m.allocate(rec)
	m.att[xid] = lsn
	m.buffer = append(m.buffer, rec)
	return lsn, nil
}

// AppendInsertLog chains an insert record and marks the page dirty in
// the DPT.
func (m *Manager) AppendInsertLog(xid primitives.XID, table primitives.TableID, pageID primitives.PageNumber,
	slotID primitives.SlotID, offset uint16, recordData []byte) (primitives.LSN, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, ok := m.att[xid]
	if !ok {
		return 0, fmt.Errorf("%w: %d not in ATT (AppendInsertLog)", ErrATTInvariant, xid)
	}

	rec := record.NewInsert(xid, prev, table, pageID, slotID, offset, recordData)
	lsn := m.allocate(rec)
	m.att[xid] = lsn
	m.buffer = append(m.buffer, rec)
	m.setDirty(table, pageID, lsn)
	return lsn, nil
}

// AppendDeleteLog chains a delete record and marks the page dirty.
func (m *Manager) AppendDeleteLog(xid primitives.XID, table primitives.TableID, pageID primitives.PageNumber,
	slotID primitives.SlotID) (primitives.LSN, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, ok := m.att[xid]
	if !ok {
		return 0, fmt.Errorf("%w: %d not in ATT (AppendDeleteLog)", ErrATTInvariant, xid)
	}

	rec := record.NewDelete(xid, prev, table, pageID, slotID)
	lsn := m.allocate(rec)
	m.att[xid] = lsn
	m.buffer = append(m.buffer, rec)
	m.setDirty(table, pageID, lsn)
	return lsn, nil
}

// AppendNewPageLog chains a page-allocation record. Both the new page
// and, when present, the linked predecessor enter the DPT.
func (m *Manager) AppendNewPageLog(xid primitives.XID, table primitives.TableID,
	prevPageID, pageID primitives.PageNumber) (primitives.LSN, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	prev, ok := m.att[xid]
	if !ok {
		return 0, fmt.Errorf("%w: %d not in ATT (AppendNewPageLog)", ErrATTInvariant, xid)
	}

	rec := record.NewNewPage(xid, prev, table, prevPageID, pageID)
	lsn := m.allocate(rec)
	m.att[xid] = lsn
	m.buffer = append(m.buffer, rec)
	m.setDirty(table, pageID, lsn)
	if prevPageID != primitives.NullPageID {
		m.setDirty(table, prevPageID, lsn)
	}
	return lsn, nil
}

// AppendCommitLog writes the commit record, forces the log through it,
// and retires the transaction from the ATT. Only after this returns is
// the transaction durably committed.
func (m *Manager) AppendCommitLog(xid primitives.XID) (primitives.LSN, error) {
	m.mutex.Lock()
	prev, ok := m.att[xid]
	if !ok {
		m.mutex.Unlock()
		return 0, fmt.Errorf("%w: %d not in ATT (AppendCommitLog)", ErrATTInvariant, xid)
	}

	rec := record.NewCommit(xid, prev)
	lsn := m.allocate(rec)
	m.buffer = append(m.buffer, rec)
	if err := m.flushLocked(lsn); err != nil {
		m.mutex.Unlock()
		return 0, err
	}
	delete(m.att, xid)
	m.mutex.Unlock()
	return lsn, nil
}

// AppendRollbackLog writes the terminal record of an aborted
// transaction after its chain has been undone, forces it, and retires
// the ATT entry.
func (m *Manager) AppendRollbackLog(xid primitives.XID) (primitives.LSN, error) {
	m.mutex.Lock()
	prev, ok := m.att[xid]
	if !ok {
		m.mutex.Unlock()
		return 0, fmt.Errorf("%w: %d not in ATT (AppendRollbackLog)", ErrATTInvariant, xid)
	}

	rec := record.NewRollback(xid, prev)
	lsn := m.allocate(rec)
	m.buffer = append(m.buffer, rec)
	if err := m.flushLocked(lsn); err != nil {
		m.mutex.Unlock()
		return 0, err
	}
	delete(m.att, xid)
	m.mutex.Unlock()
	return lsn, nil
}

// setDirty enters the page in the DPT with this LSN as rec_lsn, only
// if absent. Caller holds the mutex.
func (m *Manager) setDirty(table primitives.TableID, pageID primitives.PageNumber, lsn primitives.LSN) {
	key := primitives.NewPageKey(table, pageID)
	if _, ok := m.dpt[key]; !ok {
		m.dpt[key] = lsn
	}
}

// Flush serializes every buffered record with LSN <= lsn (all of them
// when lsn is the null sentinel) to the log file at their LSN offsets
// and advances flushed_lsn.
func (m *Manager) Flush(lsn primitives.LSN) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.flushLocked(lsn)
}

// FlushAll flushes the whole buffer.
func (m *Manager) FlushAll() error {
	return m.Flush(primitives.NullLSN)
}

func (m *Manager) flushLocked(lsn primitives.LSN) error {
	maxLSN := primitives.NullLSN
	var maxSize uint32

	remaining := m.buffer[:0]
	for i := 0; i < len(m.buffer); i++ {
		rec := m.buffer[i]
		if lsn != primitives.NullLSN && rec.LSN() > lsn {
			remaining = append(remaining, rec)
			continue
		}

		if err := m.disk.WriteLog(rec.LSN(), rec.Serialize()); err != nil {
			// Keep this record and everything unprocessed; commit
			// paths treat the failure as fatal for the transaction.
			remaining = append(remaining, m.buffer[i:]...)
			m.buffer = remaining
			return err
		}

		if maxLSN == primitives.NullLSN || rec.LSN() > maxLSN {
			maxLSN = rec.LSN()
			maxSize = rec.Size()
		}
	}
	m.buffer = remaining

	if maxLSN == primitives.NullLSN {
		return nil
	}

	if m.flushedLSN == primitives.NullLSN || maxLSN > m.flushedLSN {
		m.flushedLSN = maxLSN

		persisted, ok, err := m.disk.ReadNextLSN()
		if err != nil {
			return err
		}
		if !ok {
			persisted = primitives.FirstLSN
		}
		if m.flushedLSN+primitives.LSN(maxSize) > persisted {
			if err := m.disk.WriteNextLSN(m.flushedLSN + primitives.LSN(maxSize)); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushPageLSN is the buffer pool's WAL hook: before a dirty page is
// written back, the log is forced through the page's LSN; once the
// page write is on its way the page leaves the DPT.
func (m *Manager) FlushPageLSN(table primitives.TableID, pageID primitives.PageNumber, pageLSN primitives.LSN) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.flushLocked(pageLSN); err != nil {
		return err
	}
	delete(m.dpt, primitives.NewPageKey(table, pageID))
	return nil
}

// Checkpoint emits BeginCheckpoint, then EndCheckpoint carrying
// snapshots of the ATT and DPT, forces the log through the end record,
// and persists the begin LSN in the master record. Recovery starts
// scanning from that LSN.
func (m *Manager) Checkpoint() (primitives.LSN, error) {
	m.mutex.Lock()

	beginRec := record.NewBeginCheckpoint()
	beginLSN := m.allocate(beginRec)
	m.buffer = append(m.buffer, beginRec)

	endRec := record.NewEndCheckpoint(m.att, m.dpt)
	endLSN := m.allocate(endRec)
	m.buffer = append(m.buffer, endRec)

	if err := m.flushLocked(endLSN); err != nil {
		m.mutex.Unlock()
		return 0, err
	}
	m.mutex.Unlock()

	if err := m.disk.WriteMasterRecord(beginLSN); err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"begin_lsn": beginLSN,
		"end_lsn":   endLSN,
	}).Info("checkpoint complete")
	return endLSN, nil
}

// Rollback walks the transaction's prev_lsn chain from its last log
// record down to the null sentinel, undoing every record. Records
// newer than flushed_lsn are taken from the buffer, older ones from
// the log file.
func (m *Manager) Rollback(xid primitives.XID) error {
	m.mutex.Lock()
	lsn, ok := m.att[xid]
	m.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d not in ATT (Rollback)", ErrATTInvariant, xid)
	}

	for lsn != primitives.NullLSN {
		rec, err := m.fetchRecord(lsn)
		if err != nil {
			return err
		}

		// Undo faults pages through the buffer pool, which may evict
		// and call back into FlushPageLSN, so no lock is held here.
		if err := rec.Undo(m.pool, m.catalog); err != nil {
			return fmt.Errorf("failed to undo %s at lsn %d: %w", rec.Type(), lsn, err)
		}
		lsn = rec.PrevLSN()
	}
	return nil
}

// fetchRecord returns the record at lsn, from the in-memory buffer if
// it has not been flushed, otherwise from disk.
func (m *Manager) fetchRecord(lsn primitives.LSN) (record.LogRecord, error) {
	m.mutex.Lock()
	if m.flushedLSN == primitives.NullLSN || lsn > m.flushedLSN {
		for _, rec := range m.buffer {
			if rec.LSN() == lsn {
				m.mutex.Unlock()
				return rec, nil
			}
		}
		m.mutex.Unlock()
		return nil, fmt.Errorf("log record at lsn %d not found in buffer", lsn)
	}
	m.mutex.Unlock()

	data, err := m.disk.ReadLog(lsn, record.MaxLogSize)
	if err != nil {
		return nil, err
	}
	return record.Deserialize(lsn, data)
}

// ATT returns a copy of the active transaction table.
func (m *Manager) ATT() map[primitives.XID]primitives.LSN {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make(map[primitives.XID]primitives.LSN, len(m.att))
	for xid, lsn := range m.att {
		out[xid] = lsn
	}
	return out
}

// DPT returns a copy of the dirty page table.
func (m *Manager) DPT() map[primitives.PageKey]primitives.LSN {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make(map[primitives.PageKey]primitives.LSN, len(m.dpt))
	for key, lsn := range m.dpt {
		out[key] = lsn
	}
	return out
}
