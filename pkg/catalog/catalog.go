// Package catalog defines the read-only catalog surface the engine
// core consumes, plus an in-memory implementation used for wiring and
// tests. A real system catalog would live behind the same interface.
package catalog

import (
	"fmt"
	"sync"

	"reldb/pkg/log"
	"reldb/pkg/memory"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/table"
	"reldb/pkg/tuple"
)

// Catalog is the lookup service injected into the executors, the
// optimizer, and the log manager.
type Catalog interface {
	GetTable(oid primitives.TableID) (*table.TableHeap, error)
	GetTableColumnList(oid primitives.TableID) (*tuple.TupleDescription, error)
	GetDatabaseOid(oid primitives.TableID) (primitives.DatabaseID, error)

	// Statistics reads for the optimizer.
	GetCardinality(oid primitives.TableID) (uint64, error)
	GetDistinct(oid primitives.TableID, column string) (uint64, error)
}

type tableEntry struct {
	heap        *table.TableHeap
	db          primitives.DatabaseID
	columnList  *tuple.TupleDescription
	cardinality uint64
	distinct    map[string]uint64
}

// MemoryCatalog keeps table metadata in a mutex-guarded map.
type MemoryCatalog struct {
	mutex  sync.Mutex
	pool   *memory.BufferPool
	logs   *log.Manager
	disk   *disk.DiskManager
	tables map[primitives.TableID]*tableEntry
}

func NewMemoryCatalog(pool *memory.BufferPool, logs *log.Manager, dm *disk.DiskManager) *MemoryCatalog {
	return &MemoryCatalog{
		pool:   pool,
		logs:   logs,
		disk:   dm,
		tables: make(map[primitives.TableID]*tableEntry),
	}
}

// CreateTable registers a table and builds its heap accessor. Whether
// the heap starts empty is read off the table's file on disk, so
// reopening a database finds its data again.
func (c *MemoryCatalog) CreateTable(oid primitives.TableID, db primitives.DatabaseID, columnList *tuple.TupleDescription) (*table.TableHeap, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.tables[oid]; ok {
		return nil, fmt.Errorf("table %d already exists", oid)
	}

	pages, err := c.disk.NumPages(db, oid)
	if err != nil {
		return nil, err
	}

	heap := table.NewTableHeap(c.pool, c.logs, oid, db, columnList, pages == 0)
	c.tables[oid] = &tableEntry{
		heap:       heap,
		db:         db,
		columnList: columnList,
		distinct:   make(map[string]uint64),
	}
	return heap, nil
}

func (c *MemoryCatalog) GetTable(oid primitives.TableID) (*table.TableHeap, error) {
	entry, err := c.entry(oid)
	if err != nil {
		return nil, err
	}
	return entry.heap, nil
}

func (c *MemoryCatalog) GetTableColumnList(oid primitives.TableID) (*tuple.TupleDescription, error) {
	entry, err := c.entry(oid)
	if err != nil {
		return nil, err
	}
	return entry.columnList, nil
}

func (c *MemoryCatalog) GetDatabaseOid(oid primitives.TableID) (primitives.DatabaseID, error) {
	entry, err := c.entry(oid)
	if err != nil {
		return 0, err
	}
	return entry.db, nil
}

func (c *MemoryCatalog) GetCardinality(oid primitives.TableID) (uint64, error) {
	entry, err := c.entry(oid)
	if err != nil {
		return 0, err
	}
	return entry.cardinality, nil
}

func (c *MemoryCatalog) GetDistinct(oid primitives.TableID, column string) (uint64, error) {
	entry, err := c.entry(oid)
	if err != nil {
		return 0, err
	}
	return entry.distinct[column], nil
}

// SetCardinality records the table's row-count statistic.
func (c *MemoryCatalog) SetCardinality(oid primitives.TableID, cardinality uint64) {
	if entry, err := c.entry(oid); err == nil {
		c.mutex.Lock()
		entry.cardinality = cardinality
		c.mutex.Unlock()
	}
}

// SetDistinct records a column's distinct-value statistic.
func (c *MemoryCatalog) SetDistinct(oid primitives.TableID, column string, distinct uint64) {
	if entry, err := c.entry(oid); err == nil {
		c.mutex.Lock()
		entry.distinct[column] = distinct
		c.mutex.Unlock()
	}
}

func (c *MemoryCatalog) entry(oid primitives.TableID) (*tableEntry, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.tables[oid]
	if !ok {
		return nil, fmt.Errorf("table %d not found in catalog", oid)
	}
	return entry, nil
}
