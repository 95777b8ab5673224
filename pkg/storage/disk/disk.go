// Package disk owns every file the engine touches: one heap file per
// table, the write-ahead log byte stream, and the two ASCII metadata
// files recovery bootstraps from.
package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"reldb/pkg/primitives"
)

const (
	// MasterRecordFileName holds the LSN of the most recent
	// BeginCheckpoint record as a single ASCII integer.
	MasterRecordFileName = "MASTER_RECORD"

	// NextLSNFileName holds the first unused LSN as a single ASCII
	// integer; recovery sizes the log from it.
	NextLSNFileName = "NEXT_LSN"

	// LogFileName is the write-ahead log byte stream. The record with
	// LSN L starts exactly at file offset L.
	LogFileName = "reldb.log"

	// PageSize is the fixed size of every heap page.
	PageSize = 4096
)

// DiskManager performs all block and log I/O under a single data
// directory. It is safe for concurrent use.
type DiskManager struct {
	dir   string
	mutex sync.Mutex
	files map[string]*os.File
}

func NewDiskManager(dir string) (*DiskManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &DiskManager{
		dir:   dir,
		files: make(map[string]*os.File),
	}, nil
}

func heapFileName(db primitives.DatabaseID, table primitives.TableID) string {
	return fmt.Sprintf("%d_%d.tbl", db, table)
}

func (dm *DiskManager) open(name string) (*os.File, error) {
	if f, ok := dm.files[name]; ok {
		return f, nil
	}
	f, err := os.OpenFile(filepath.Join(dm.dir, name), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	dm.files[name] = f
	return f, nil
}

// ReadPage reads the page into a fresh PageSize buffer. Reading past
// the current end of the heap file yields a zeroed page, which is how
// redo recreates pages that never made it to disk.
func (dm *DiskManager) ReadPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) ([]byte, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, err := dm.open(heapFileName(db, table))
	if err != nil {
		return nil, err
	}

	data := make([]byte, PageSize)
	_, err = f.ReadAt(data, int64(pageID)*PageSize)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read page %d of table %d: %w", pageID, table, err)
	}
	return data, nil
}

// WritePage writes a full page back at its offset.
func (dm *DiskManager) WritePage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("invalid page data size: expected %d, got %d", PageSize, len(data))
	}

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, err := dm.open(heapFileName(db, table))
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, int64(pageID)*PageSize); err != nil {
		return fmt.Errorf("failed to write page %d of table %d: %w", pageID, table, err)
	}
	return nil
}

// NumPages reports how many pages the table's heap file holds on disk.
func (dm *DiskManager) NumPages(db primitives.DatabaseID, table primitives.TableID) (uint64, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, err := dm.open(heapFileName(db, table))
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat heap file: %w", err)
	}

	pages := uint64(info.Size()) / PageSize
	if uint64(info.Size())%PageSize != 0 {
		pages++
	}
	return pages, nil
}

// WriteLog writes the serialized record at its LSN offset.
func (dm *DiskManager) WriteLog(lsn primitives.LSN, data []byte) error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, err := dm.open(LogFileName)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, int64(lsn)); err != nil {
		return fmt.Errorf("failed to write log at lsn %d: %w", lsn, err)
	}
	return nil
}

// ReadLog reads up to count bytes starting at the given LSN. Short
// reads at the end of the log are not an error; the deserializer
// determines the actual record length.
func (dm *DiskManager) ReadLog(lsn primitives.LSN, count uint32) ([]byte, error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	f, err := dm.open(LogFileName)
	if err != nil {
		return nil, err
	}

	data := make([]byte, count)
	n, err := f.ReadAt(data, int64(lsn))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read log at lsn %d: %w", lsn, err)
	}
	return data[:n], nil
}

// LogExists reports whether a log file is present, which tells the
// engine whether recovery has anything to do.
func (dm *DiskManager) LogExists() bool {
	_, err := os.Stat(filepath.Join(dm.dir, LogFileName))
	return err == nil
}

// ReadMasterRecord returns the checkpoint LSN, or ok=false when no
// checkpoint has ever been taken.
func (dm *DiskManager) ReadMasterRecord() (primitives.LSN, bool, error) {
	return dm.readASCIIInt(MasterRecordFileName)
}

// WriteMasterRecord persists the LSN of the latest BeginCheckpoint.
func (dm *DiskManager) WriteMasterRecord(lsn primitives.LSN) error {
	return dm.writeASCIIInt(MasterRecordFileName, lsn)
}

// ReadNextLSN returns the persisted first-unused LSN, or ok=false when
// nothing has been flushed yet.
func (dm *DiskManager) ReadNextLSN() (primitives.LSN, bool, error) {
	return dm.readASCIIInt(NextLSNFileName)
}

func (dm *DiskManager) WriteNextLSN(lsn primitives.LSN) error {
	return dm.writeASCIIInt(NextLSNFileName, lsn)
}

func (dm *DiskManager) readASCIIInt(name string) (primitives.LSN, bool, error) {
	data, err := os.ReadFile(filepath.Join(dm.dir, name))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", name, err)
	}

	value, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt %s file: %w", name, err)
	}
	return primitives.LSN(value), true, nil
}

func (dm *DiskManager) writeASCIIInt(name string, lsn primitives.LSN) error {
	path := filepath.Join(dm.dir, name)
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uint64(lsn), 10)), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Sync flushes every open file to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for name, f := range dm.files {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync %s: %w", name, err)
		}
	}
	return nil
}

// Close closes every open file handle.
func (dm *DiskManager) Close() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	var firstErr error
	for name, f := range dm.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
		delete(dm.files, name)
	}
	return firstErr
}
