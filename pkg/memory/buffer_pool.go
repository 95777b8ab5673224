package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/storage/page"
)

// ErrPoolFull is returned when every frame is pinned and no victim can
// be evicted.
var ErrPoolFull = errors.New("buffer pool full: no unpinned frame to evict")

// LogFlusher is the slice of the log manager the buffer pool needs: it
// must be able to force the log up to a page's LSN before that page is
// written back, and it drops the page from the dirty page table before
// the page write is issued. Declared here so the memory package does not
// depend on the log package.
type LogFlusher interface {
	FlushPageLSN(table primitives.TableID, pageID primitives.PageNumber, pageLSN primitives.LSN) error
}

type frameKey struct {
	db     primitives.DatabaseID
	table  primitives.TableID
	pageID primitives.PageNumber
}

// BufferPool caches a fixed number of page frames over the disk
// manager, evicting by LRU. A dirty victim is written back before its
// frame is reused, and the write-ahead rule is enforced by flushing
// the log through the victim's page LSN first.
type BufferPool struct {
	mutex     sync.Mutex
	disk      *disk.DiskManager
	frames    []*page.Page
	pageTable map[frameKey]int
	freeList  []int
	replacer  *LRUReplacer
	logs      LogFlusher
}

func NewBufferPool(capacity int, dm *disk.DiskManager) *BufferPool {
	free := make([]int, 0, capacity)
	for i := capacity - 1; i >= 0; i-- {
		free = append(free, i)
	}
	return &BufferPool{
		disk:      dm,
		frames:    make([]*page.Page, capacity),
		pageTable: make(map[frameKey]int, capacity),
		freeList:  free,
		replacer:  NewLRUReplacer(),
	}
}

// SetLogFlusher wires the log manager in after construction; the two
// components reference each other.
func (bp *BufferPool) SetLogFlusher(f LogFlusher) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	bp.logs = f
}

// GetPage returns the frame holding the page, faulting it in from disk
// on a miss and evicting a victim when the pool is full.
func (bp *BufferPool) GetPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) (*page.Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	key := frameKey{db, table, pageID}
	if idx, ok := bp.pageTable[key]; ok {
		bp.replacer.Access(idx)
		return bp.frames[idx], nil
	}

	idx, err := bp.allocFrame()
	if err != nil {
		return nil, err
	}

	data, err := bp.disk.ReadPage(db, table, pageID)
	if err != nil {
		bp.freeList = append(bp.freeList, idx)
		return nil, err
	}

	p := page.NewPage(db, table, pageID, data)
	bp.frames[idx] = p
	bp.pageTable[key] = idx
	bp.replacer.Access(idx)
	return p, nil
}

// NewPage allocates a fresh zeroed page with the given id and returns
// its frame. The frame is dirty from birth so the page reaches disk
// even if it is never touched again.
func (bp *BufferPool) NewPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) (*page.Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	key := frameKey{db, table, pageID}
	if idx, ok := bp.pageTable[key]; ok {
		// The page is being re-created (recovery redo); reuse the frame.
		bp.replacer.Access(idx)
		return bp.frames[idx], nil
	}

	idx, err := bp.allocFrame()
	if err != nil {
		return nil, err
	}

	p := page.NewPage(db, table, pageID, nil)
	p.SetDirty()
	bp.frames[idx] = p
	bp.pageTable[key] = idx
	bp.replacer.Access(idx)
	return p, nil
}

// allocFrame returns a usable frame index, evicting the LRU victim if
// no frame is free. Pinned frames are skipped; if nothing can go, the
// pool is full. Caller holds the mutex.
func (bp *BufferPool) allocFrame() (int, error) {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return idx, nil
	}

	var pinned []int
	defer func() {
		// Pinned frames we passed over stay resident and recent.
		for _, idx := range pinned {
			bp.replacer.Access(idx)
		}
	}()

	for {
		idx, err := bp.replacer.Evict()
		if err != nil {
			return 0, ErrPoolFull
		}

		victim := bp.frames[idx]
		if victim.PinCount() > 0 {
			pinned = append(pinned, idx)
			continue
		}

		if err := bp.flushFrame(victim); err != nil {
			bp.replacer.Access(idx)
			return 0, err
		}

		logrus.WithFields(logrus.Fields{
			"table": victim.Table(),
			"page":  victim.ID(),
		}).Debug("buffer pool evicted page")

		delete(bp.pageTable, frameKey{victim.Db(), victim.Table(), victim.ID()})
		bp.frames[idx] = nil
		return idx, nil
	}
}

// flushFrame writes a dirty frame back to disk, forcing the log
// through the page's LSN first (the WAL rule). Caller holds the mutex.
func (bp *BufferPool) flushFrame(p *page.Page) error {
	if !p.IsDirty() {
		return nil
	}

	pageLSN := page.NewSlottedPage(p).PageLSN()
	if bp.logs != nil {
		if err := bp.logs.FlushPageLSN(p.Table(), p.ID(), pageLSN); err != nil {
			return fmt.Errorf("failed to flush log before page write: %w", err)
		}
	}

	if err := bp.disk.WritePage(p.Db(), p.Table(), p.ID(), p.Data()); err != nil {
		return err
	}
	p.ClearDirty()
	return nil
}

// FlushPage writes one page back if it is resident and dirty.
func (bp *BufferPool) FlushPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	idx, ok := bp.pageTable[frameKey{db, table, pageID}]
	if !ok {
		return nil
	}
	return bp.flushFrame(bp.frames[idx])
}

// FlushAll writes every dirty resident page back to disk.
func (bp *BufferPool) FlushAll() error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	for _, p := range bp.frames {
		if p == nil {
			continue
		}
		if err := bp.flushFrame(p); err != nil {
			return err
		}
	}
	return nil
}

// PageExists reports whether the page is resident or present in the
// table's heap file. Recovery can materialize pages that were never
// flushed, so residency counts.
func (bp *BufferPool) PageExists(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) (bool, error) {
	bp.mutex.Lock()
	if _, ok := bp.pageTable[frameKey{db, table, pageID}]; ok {
		bp.mutex.Unlock()
		return true, nil
	}
	bp.mutex.Unlock()

	pages, err := bp.disk.NumPages(db, table)
	if err != nil {
		return false, err
	}
	return uint64(pageID) < pages, nil
}

// Size is the number of resident pages.
func (bp *BufferPool) Size() int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return len(bp.pageTable)
}

// Capacity is the fixed number of frames.
func (bp *BufferPool) Capacity() int {
	return len(bp.frames)
}
