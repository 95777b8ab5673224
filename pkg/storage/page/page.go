package page

import (
	"sync"

	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
)

// PageSize re-exports the block size so upper layers need not import
// the disk package for it.
const PageSize = disk.PageSize

// Page is one buffer-pool frame's view of an on-disk block. Handles
// returned by the pool borrow the frame; the pool stays the owner and
// reuses the frame after eviction.
type Page struct {
	db      primitives.DatabaseID
	table   primitives.TableID
	id      primitives.PageNumber
	data    []byte
	dirty   bool
	pins    int
	mutex   sync.Mutex
}

func NewPage(db primitives.DatabaseID, table primitives.TableID, id primitives.PageNumber, data []byte) *Page {
	if data == nil {
		data = make([]byte, PageSize)
	}
	return &Page{db: db, table: table, id: id, data: data}
}

func (p *Page) Db() primitives.DatabaseID { return p.db }

func (p *Page) Table() primitives.TableID { return p.table }

func (p *Page) ID() primitives.PageNumber { return p.id }

func (p *Page) Key() primitives.PageKey {
	return primitives.NewPageKey(p.table, p.id)
}

// Data exposes the raw page bytes. Mutators must call SetDirty.
func (p *Page) Data() []byte { return p.data }

func (p *Page) IsDirty() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.dirty
}

func (p *Page) SetDirty() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.dirty = true
}

func (p *Page) ClearDirty() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.dirty = false
}

// Pin marks the page in use; a pinned page is never evicted.
func (p *Page) Pin() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pins++
}

func (p *Page) Unpin() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.pins > 0 {
		p.pins--
	}
}

func (p *Page) PinCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.pins
}
