package primitives

import "math"

// LSN (Log Sequence Number) uniquely identifies each log record.
// It is monotonically increasing and equals the byte offset of the
// record in the log file.
type LSN uint64

// TableID identifies a table (its oid in the catalog).
type TableID uint64

// DatabaseID identifies the database a table belongs to.
type DatabaseID uint64

// PageNumber represents a page number within a table heap file.
type PageNumber uint64

// SlotID represents a slot number within a page.
type SlotID uint16

// XID identifies a transaction. XIDs are allocated monotonically by
// the transaction manager, so comparing two XIDs orders the
// transactions by start time.
type XID uint64

// CID is a command id within a transaction. Each statement executed
// under one transaction gets its own CID.
type CID uint32

// Sentinel values for invalid/unset identifiers
const (
	// NullPageID marks the end of a table's page list and the page id
	// of a table that has never received a row.
	NullPageID PageNumber = math.MaxUint64

	// NullLSN is used both as "no previous log record" in prev_lsn
	// chains and as the flush-everything sentinel for Flush.
	NullLSN LSN = math.MaxUint64

	// NullXID marks a record that has no deleting transaction.
	NullXID XID = math.MaxUint64

	// FirstLSN is the byte offset of the first record in the log file.
	FirstLSN LSN = 0

	// InvalidSlotID represents an unset slot.
	InvalidSlotID SlotID = math.MaxUint16
)
