package primitives

import "fmt"

// Rid identifies a row version: the page it lives on and the slot
// within that page. A Rid is stable for the lifetime of the version;
// updates produce a new version with a new Rid.
type Rid struct {
	PageID PageNumber
	SlotID SlotID
}

func NewRid(pageID PageNumber, slotID SlotID) Rid {
	return Rid{PageID: pageID, SlotID: slotID}
}

// Equals checks if two Rids reference the same row version.
func (r Rid) Equals(other Rid) bool {
	return r.PageID == other.PageID && r.SlotID == other.SlotID
}

func (r Rid) String() string {
	return fmt.Sprintf("Rid(%d,%d)", r.PageID, r.SlotID)
}

// PageKey addresses a page across tables. It is the key type of the
// dirty page table and of the buffer pool's page table.
type PageKey struct {
	TableID TableID
	PageID  PageNumber
}

func NewPageKey(tableID TableID, pageID PageNumber) PageKey {
	return PageKey{TableID: tableID, PageID: pageID}
}

func (k PageKey) String() string {
	return fmt.Sprintf("Page(%d,%d)", k.TableID, k.PageID)
}
