package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/storage/page"
)

// recordingFlusher captures the WAL hook calls eviction makes.
type recordingFlusher struct {
	calls []primitives.LSN
}

func (f *recordingFlusher) FlushPageLSN(_ primitives.TableID, _ primitives.PageNumber, pageLSN primitives.LSN) error {
	f.calls = append(f.calls, pageLSN)
	return nil
}

func newTestPool(t *testing.T, capacity int) (*BufferPool, *disk.DiskManager) {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return NewBufferPool(capacity, dm), dm
}

func TestNewPageThenGetPageHits(t *testing.T) {
	bp, _ := newTestPool(t, 4)

	p, err := bp.NewPage(1, 10, 0)
	require.NoError(t, err)
	assert.True(t, p.IsDirty())

	again, err := bp.GetPage(1, 10, 0)
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 1, bp.Size())
}

func TestFaultFromDisk(t *testing.T) {
	bp, dm := newTestPool(t, 2)

	data := make([]byte, disk.PageSize)
	data[100] = 0xAB
	require.NoError(t, dm.WritePage(1, 10, 3, data))

	p, err := bp.GetPage(1, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), p.Data()[100])
	assert.False(t, p.IsDirty())
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	bp, dm := newTestPool(t, 2)
	flusher := &recordingFlusher{}
	bp.SetLogFlusher(flusher)

	p0, err := bp.NewPage(1, 10, 0)
	require.NoError(t, err)
	sp := page.NewSlottedPage(p0)
	sp.Init()
	sp.SetPageLSN(77)

	_, err = bp.NewPage(1, 10, 1)
	require.NoError(t, err)

	// Third page forces eviction of page 0, the LRU victim.
	_, err = bp.NewPage(1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, bp.Size())

	// The WAL hook saw page 0's LSN before the write-back.
	require.Len(t, flusher.calls, 1)
	assert.Equal(t, primitives.LSN(77), flusher.calls[0])

	// The victim's bytes reached disk.
	data, err := dm.ReadPage(1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, primitives.LSN(77), page.NewSlottedPage(page.NewPage(1, 10, 0, data)).PageLSN())
}

func TestPoolFullWhenAllPinned(t *testing.T) {
	bp, _ := newTestPool(t, 2)

	p0, err := bp.NewPage(1, 10, 0)
	require.NoError(t, err)
	p0.Pin()
	p1, err := bp.NewPage(1, 10, 1)
	require.NoError(t, err)
	p1.Pin()

	_, err = bp.NewPage(1, 10, 2)
	assert.ErrorIs(t, err, ErrPoolFull)

	// Unpinning makes room again.
	p0.Unpin()
	_, err = bp.NewPage(1, 10, 2)
	assert.NoError(t, err)
}

func TestFlushAllClearsDirtyAndPersists(t *testing.T) {
	bp, dm := newTestPool(t, 4)

	p, err := bp.NewPage(1, 10, 0)
	require.NoError(t, err)
	sp := page.NewSlottedPage(p)
	sp.Init()
	sp.SetNextPageID(9)

	require.NoError(t, bp.FlushAll())
	assert.False(t, p.IsDirty())

	data, err := dm.ReadPage(1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, primitives.PageNumber(9), page.NewSlottedPage(page.NewPage(1, 10, 0, data)).NextPageID())
}

func TestFlushPageMissIsNoop(t *testing.T) {
	bp, _ := newTestPool(t, 2)
	assert.NoError(t, bp.FlushPage(1, 10, 42))
}
