package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/primitives"
	"reldb/pkg/storage/page"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

func readRecord(t *testing.T, h *harness, pageID primitives.PageNumber, slot primitives.SlotID) *tuple.Record {
	t.Helper()
	p, err := h.pool.GetPage(1, 7, pageID)
	require.NoError(t, err)
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
	require.NoError(t, err)
	rec, err := page.NewSlottedPage(p).GetRecord(primitives.NewRid(pageID, slot), td)
	require.NoError(t, err)
	return rec
}

// Crash between insert and commit: recovery must redo the insert and
// then roll it back, leaving no live row.
func TestRecoveryCrashBeforeCommit(t *testing.T) {
	dir := t.TempDir()

	before := newHarness(t, dir)
	_, err := before.logs.AppendBeginLog(1)
	require.NoError(t, err)
	slot := insertLogged(t, before, 1, 7, 0, 42, true)
	require.NoError(t, before.logs.FlushAll())
	// Crash: the page never reaches disk, the commit never happens.

	after := newHarness(t, dir)
	require.NoError(t, after.logs.Recover())

	rec := readRecord(t, after, 0, slot)
	assert.True(t, rec.Header.Deleted, "uncommitted insert must be rolled back")
	assert.Equal(t, primitives.XID(1), rec.Header.Xmin)

	assert.Empty(t, after.logs.ATT(), "no loser transactions remain after undo")
	assert.Greater(t, after.txns.GetNextXid(), primitives.XID(1), "xid allocator must move past logged xids")
}

// Crash after commit but before the page flush: redo alone must
// reinstate the row.
func TestRecoveryCrashAfterCommit(t *testing.T) {
	dir := t.TempDir()

	before := newHarness(t, dir)
	_, err := before.logs.AppendBeginLog(1)
	require.NoError(t, err)
	slot := insertLogged(t, before, 1, 7, 0, 42, true)
	_, err = before.logs.AppendCommitLog(1)
	require.NoError(t, err)
	// Crash with the page still only in memory.

	after := newHarness(t, dir)
	require.NoError(t, after.logs.Recover())

	rec := readRecord(t, after, 0, slot)
	assert.False(t, rec.Header.Deleted)
	f, _ := rec.GetField(0)
	assert.True(t, f.Equals(types.NewIntField(42)))
	assert.Empty(t, after.logs.ATT())
}

// Redo must not reapply a mutation the flushed page already carries:
// the page LSN gates it.
func TestRedoSkipsAlreadyAppliedPages(t *testing.T) {
	dir := t.TempDir()

	before := newHarness(t, dir)
	_, err := before.logs.AppendBeginLog(1)
	require.NoError(t, err)
	slot := insertLogged(t, before, 1, 7, 0, 42, true)
	_, err = before.logs.AppendCommitLog(1)
	require.NoError(t, err)
	require.NoError(t, before.pool.FlushAll())

	after := newHarness(t, dir)
	require.NoError(t, after.logs.Recover())

	// The row is there exactly once.
	p, err := after.pool.GetPage(1, 7, 0)
	require.NoError(t, err)
	sp := page.NewSlottedPage(p)
	assert.Equal(t, primitives.SlotID(slot+1), sp.RecordCount())
}

// Recovery picks up from a checkpoint: the master record points at
// BeginCheckpoint and the EndCheckpoint payload seeds the tables.
func TestRecoveryFromCheckpoint(t *testing.T) {
	dir := t.TempDir()

	before := newHarness(t, dir)
	_, err := before.logs.AppendBeginLog(1)
	require.NoError(t, err)
	slotA := insertLogged(t, before, 1, 7, 0, 1, true)
	_, err = before.logs.Checkpoint()
	require.NoError(t, err)
	slotB := insertLogged(t, before, 1, 7, 0, 2, false)
	require.NoError(t, before.logs.FlushAll())
	// Crash before commit; both inserts straddle the checkpoint.

	after := newHarness(t, dir)
	require.NoError(t, after.logs.Recover())

	recA := readRecord(t, after, 0, slotA)
	recB := readRecord(t, after, 0, slotB)
	assert.True(t, recA.Header.Deleted)
	assert.True(t, recB.Header.Deleted)
	assert.Empty(t, after.logs.ATT())
}

// Replaying a cleanly shut down log reproduces the flushed state.
func TestCleanShutdownReplayIsIdentity(t *testing.T) {
	dir := t.TempDir()

	before := newHarness(t, dir)
	_, err := before.logs.AppendBeginLog(1)
	require.NoError(t, err)
	slot := insertLogged(t, before, 1, 7, 0, 42, true)
	_, err = before.logs.AppendCommitLog(1)
	require.NoError(t, err)
	require.NoError(t, before.pool.FlushAll())

	snapshot, err := before.disk.ReadPage(1, 7, 0)
	require.NoError(t, err)

	after := newHarness(t, dir)
	require.NoError(t, after.logs.Recover())
	require.NoError(t, after.pool.FlushAll())

	replayed, err := after.disk.ReadPage(1, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, snapshot, replayed, "replay of a clean log must be byte-identical")
	_ = slot
}
