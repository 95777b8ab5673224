// Package record defines the write-ahead log record types. Records
// form a tagged union: one concrete struct per kind, each knowing how
// to serialize, deserialize, undo, and redo itself.
package record

import (
	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
)

// LogType tags each record kind on the wire.
type LogType uint8

const (
	BeginLog LogType = iota
	CommitLog
	RollbackLog
	InsertLog
	DeleteLog
	NewPageLog
	BeginCheckpointLog
	EndCheckpointLog
)

func (t LogType) String() string {
	switch t {
	case BeginLog:
		return "BEGIN"
	case CommitLog:
		return "COMMIT"
	case RollbackLog:
		return "ROLLBACK"
	case InsertLog:
		return "INSERT"
	case DeleteLog:
		return "DELETE"
	case NewPageLog:
		return "NEW_PAGE"
	case BeginCheckpointLog:
		return "BEGIN_CHECKPOINT"
	case EndCheckpointLog:
		return "END_CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

const (
	// headerSize covers {type, lsn, xid, prev_lsn, size}.
	headerSize = 1 + 8 + 8 + 8 + 4

	// checksumSize is the xxhash trailer appended to every record.
	checksumSize = 8

	// MaxLogSize bounds any serialized record: an insert carries at
	// most one full record body, so two pages is a safe ceiling.
	// Rollback and recovery read this many bytes per fetch.
	MaxLogSize = 2 * page.PageSize
)

// PageFetcher is the slice of the buffer pool undo and redo need.
type PageFetcher interface {
	GetPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) (*page.Page, error)
	NewPage(db primitives.DatabaseID, table primitives.TableID, pageID primitives.PageNumber) (*page.Page, error)
}

// CatalogReader resolves which database a table belongs to, which is
// all the log layer needs from the catalog.
type CatalogReader interface {
	GetDatabaseOid(table primitives.TableID) (primitives.DatabaseID, error)
}

// LogRecord is one entry of the write-ahead log.
type LogRecord interface {
	Type() LogType
	LSN() primitives.LSN
	SetLSN(lsn primitives.LSN)
	Xid() primitives.XID
	PrevLSN() primitives.LSN

	// Size is the exact number of log-file bytes the record occupies;
	// LSN allocation reserves this many.
	Size() uint32

	// Serialize renders the record into Size() bytes.
	Serialize() []byte

	// Undo reverses the record's page effect during rollback.
	Undo(pool PageFetcher, catalog CatalogReader) error

	// Redo reapplies the record's page effect during recovery.
	Redo(pool PageFetcher, catalog CatalogReader) error
}

// base carries the fields every record shares.
type base struct {
	lsn     primitives.LSN
	xid     primitives.XID
	prevLSN primitives.LSN
}

func (b *base) LSN() primitives.LSN         { return b.lsn }
func (b *base) SetLSN(lsn primitives.LSN)   { b.lsn = lsn }
func (b *base) Xid() primitives.XID         { return b.xid }
func (b *base) PrevLSN() primitives.LSN     { return b.prevLSN }

// Coordinates returns the (table, page) a mutation record touches.
// Non-mutation kinds report ok=false. The ATT and DPT only need these
// plus the xid and LSNs, so no further variant inspection leaks out.
func Coordinates(rec LogRecord) (primitives.TableID, primitives.PageNumber, bool) {
	switch r := rec.(type) {
	case *Insert:
		return r.TableID, r.PageID, true
	case *Delete:
		return r.TableID, r.PageID, true
	case *NewPage:
		return r.TableID, r.PageID, true
	default:
		return 0, 0, false
	}
}

// IsMutation reports whether the record changes page contents.
func IsMutation(rec LogRecord) bool {
	switch rec.Type() {
	case InsertLog, DeleteLog, NewPageLog:
		return true
	default:
		return false
	}
}
