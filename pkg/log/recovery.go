package log

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"reldb/pkg/log/record"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
)

// Recover runs the three ARIES phases. It must complete before any
// transaction starts; the buffer pool and catalog must already be
// wired in.
func (m *Manager) Recover() error {
	if err := m.analyze(); err != nil {
		return fmt.Errorf("recovery analysis failed: %w", err)
	}
	if err := m.redo(); err != nil {
		return fmt.Errorf("recovery redo failed: %w", err)
	}
	if err := m.undo(); err != nil {
		return fmt.Errorf("recovery undo failed: %w", err)
	}
	return nil
}

// analyze rebuilds the ATT and DPT. The first pass finds the
// checkpoint's EndCheckpoint record and seeds both tables from its
// payload; the second pass scans every record from the checkpoint on,
// tracking mutations and commits and raising the xid allocator past
// every xid seen.
func (m *Manager) analyze() error {
	next, ok, err := m.disk.ReadNextLSN()
	if err != nil {
		return err
	}
	if !ok {
		next = primitives.FirstLSN
	}
	m.nextLSN.Store(uint64(next))

	m.mutex.Lock()
	if next > primitives.FirstLSN {
		m.flushedLSN = next - 1
	} else {
		m.flushedLSN = primitives.NullLSN
	}
	m.att = make(map[primitives.XID]primitives.LSN)
	m.dpt = make(map[primitives.PageKey]primitives.LSN)
	m.mutex.Unlock()

	checkpointLSN, ok, err := m.disk.ReadMasterRecord()
	if err != nil {
		return err
	}
	if !ok {
		checkpointLSN = primitives.FirstLSN
	}
	m.recoveryStart = checkpointLSN

	// First pass: seed the tables from the checkpoint snapshot.
	for pos := checkpointLSN; pos < next; {
		rec, err := m.readLogAt(pos)
		if err != nil {
			return err
		}
		if end, isEnd := rec.(*record.EndCheckpoint); isEnd {
			m.mutex.Lock()
			for xid, lsn := range end.ATT {
				m.att[xid] = lsn
			}
			for key, lsn := range end.DPT {
				m.dpt[key] = lsn
			}
			m.mutex.Unlock()
			break
		}
		pos += primitives.LSN(rec.Size())
	}

	// Second pass: replay the bookkeeping of every record after the
	// checkpoint.
	for pos := checkpointLSN; pos < next; {
		rec, err := m.readLogAt(pos)
		if err != nil {
			return err
		}

		xid := rec.Xid()
		if record.IsMutation(rec) {
			m.mutex.Lock()
			m.att[xid] = pos
			if table, pageID, ok := record.Coordinates(rec); ok {
				m.setDirty(table, pageID, pos)
			}
			m.mutex.Unlock()
		}
		if rec.Type() == record.CommitLog {
			m.mutex.Lock()
			delete(m.att, xid)
			m.mutex.Unlock()
		}
		if xid != primitives.NullXID {
			m.txns.SetNextXid(xid)
		}

		pos += primitives.LSN(rec.Size())
	}

	m.mutex.Lock()
	attSize, dptSize := len(m.att), len(m.dpt)
	m.mutex.Unlock()
	logrus.WithFields(logrus.Fields{
		"checkpoint_lsn": checkpointLSN,
		"next_lsn":       next,
		"att":            attSize,
		"dpt":            dptSize,
	}).Info("recovery analysis complete")
	return nil
}

// redo reapplies mutations starting from the oldest rec_lsn in the
// DPT. A record is redone only when its page is in the DPT, the record
// is at or past the page's rec_lsn, and the on-disk page has not
// already seen it (page_lsn check). Page allocations that pass the
// DPT checks are redone without the page_lsn check.
func (m *Manager) redo() error {
	next := primitives.LSN(m.nextLSN.Load())

	start := m.recoveryStart
	m.mutex.Lock()
	for _, recLSN := range m.dpt {
		if recLSN < start {
			start = recLSN
		}
	}
	m.mutex.Unlock()

	redone := 0
	for pos := start; pos < next; {
		rec, err := m.readLogAt(pos)
		if err != nil {
			return err
		}
		size := primitives.LSN(rec.Size())

		if !record.IsMutation(rec) {
			pos += size
			continue
		}

		table, pageID, _ := record.Coordinates(rec)
		m.mutex.Lock()
		recLSN, dirty := m.dpt[primitives.NewPageKey(table, pageID)]
		m.mutex.Unlock()
		if !dirty || pos < recLSN {
			pos += size
			continue
		}

		if rec.Type() == record.NewPageLog {
			if err := rec.Redo(m.pool, m.catalog); err != nil {
				return err
			}
			redone++
			pos += size
			continue
		}

		db, err := m.catalog.GetDatabaseOid(table)
		if err != nil {
			return err
		}
		p, err := m.pool.GetPage(db, table, pageID)
		if err != nil {
			return err
		}
		if pos > page.NewSlottedPage(p).PageLSN() {
			if err := rec.Redo(m.pool, m.catalog); err != nil {
				return err
			}
			redone++
		}
		pos += size
	}

	logrus.WithFields(logrus.Fields{
		"start_lsn": start,
		"redone":    redone,
	}).Info("recovery redo complete")
	return nil
}

// undo rolls back every transaction the analysis left in the ATT:
// each was alive with side effects when the system went down.
func (m *Manager) undo() error {
	m.mutex.Lock()
	losers := make([]primitives.XID, 0, len(m.att))
	for xid := range m.att {
		losers = append(losers, xid)
	}
	m.mutex.Unlock()

	for _, xid := range losers {
		if err := m.Rollback(xid); err != nil {
			return err
		}
		m.mutex.Lock()
		delete(m.att, xid)
		m.mutex.Unlock()
	}

	if len(losers) > 0 {
		logrus.WithField("transactions", len(losers)).Info("recovery undo rolled back loser transactions")
	}
	return nil
}

// readLogAt reads and deserializes the record at the given offset
// straight from the log file.
func (m *Manager) readLogAt(lsn primitives.LSN) (record.LogRecord, error) {
	data, err := m.disk.ReadLog(lsn, record.MaxLogSize)
	if err != nil {
		return nil, err
	}
	return record.Deserialize(lsn, data)
}
