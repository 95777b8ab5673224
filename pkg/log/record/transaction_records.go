package record

import "reldb/pkg/primitives"

// Begin opens a transaction's log chain; its prev_lsn is always the
// null sentinel.
type Begin struct {
	base
}

func NewBegin(xid primitives.XID) *Begin {
	return &Begin{base: base{lsn: primitives.NullLSN, xid: xid, prevLSN: primitives.NullLSN}}
}

func (r *Begin) Type() LogType { return BeginLog }

func (r *Begin) Size() uint32 { return headerSize + checksumSize }

func (r *Begin) Serialize() []byte { return seal(BeginLog, &r.base, nil) }

func (r *Begin) Undo(PageFetcher, CatalogReader) error { return nil }

func (r *Begin) Redo(PageFetcher, CatalogReader) error { return nil }

// Commit is the terminal record of a committed transaction. The log
// manager forces the log through it before reporting commit.
type Commit struct {
	base
}

func NewCommit(xid primitives.XID, prevLSN primitives.LSN) *Commit {
	return &Commit{base: base{lsn: primitives.NullLSN, xid: xid, prevLSN: prevLSN}}
}

func (r *Commit) Type() LogType { return CommitLog }

func (r *Commit) Size() uint32 { return headerSize + checksumSize }

func (r *Commit) Serialize() []byte { return seal(CommitLog, &r.base, nil) }

func (r *Commit) Undo(PageFetcher, CatalogReader) error { return nil }

func (r *Commit) Redo(PageFetcher, CatalogReader) error { return nil }

// Rollback is the terminal record of an aborted transaction, written
// after its chain has been undone.
type Rollback struct {
	base
}

func NewRollback(xid primitives.XID, prevLSN primitives.LSN) *Rollback {
	return &Rollback{base: base{lsn: primitives.NullLSN, xid: xid, prevLSN: prevLSN}}
}

func (r *Rollback) Type() LogType { return RollbackLog }

func (r *Rollback) Size() uint32 { return headerSize + checksumSize }

func (r *Rollback) Serialize() []byte { return seal(RollbackLog, &r.base, nil) }

func (r *Rollback) Undo(PageFetcher, CatalogReader) error { return nil }

func (r *Rollback) Redo(PageFetcher, CatalogReader) error { return nil }
