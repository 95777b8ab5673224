package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/catalog"
	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/log"
	"reldb/pkg/memory"
	"reldb/pkg/primitives"
	"reldb/pkg/storage/disk"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

func newTestCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	logs, err := log.NewManager(dm, transaction.NewManager())
	require.NoError(t, err)
	pool := memory.NewBufferPool(8, dm)
	pool.SetLogFlusher(logs)
	logs.SetBufferPool(pool)

	cat := catalog.NewMemoryCatalog(pool, logs, dm)
	logs.SetCatalog(cat)
	return cat
}

func usersDesc(t *testing.T) *tuple.TupleDescription {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"u.id"})
	require.NoError(t, err)
	return td
}

func TestCreateAndLookupTable(t *testing.T) {
	cat := newTestCatalog(t)
	td := usersDesc(t)

	heap, err := cat.CreateTable(7, 1, td)
	require.NoError(t, err)
	assert.Equal(t, primitives.NullPageID, heap.FirstPageID(), "fresh table has no pages")

	got, err := cat.GetTable(7)
	require.NoError(t, err)
	assert.Same(t, heap, got)

	cols, err := cat.GetTableColumnList(7)
	require.NoError(t, err)
	assert.Same(t, td, cols)

	db, err := cat.GetDatabaseOid(7)
	require.NoError(t, err)
	assert.Equal(t, primitives.DatabaseID(1), db)

	_, err = cat.CreateTable(7, 1, td)
	assert.Error(t, err, "duplicate oid")

	_, err = cat.GetTable(99)
	assert.Error(t, err)
}

func TestStatisticsReads(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable(7, 1, usersDesc(t))
	require.NoError(t, err)

	card, err := cat.GetCardinality(7)
	require.NoError(t, err)
	assert.Zero(t, card, "unset statistics read as zero")

	cat.SetCardinality(7, 1000)
	cat.SetDistinct(7, "u.id", 250)

	card, err = cat.GetCardinality(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), card)

	distinct, err := cat.GetDistinct(7, "u.id")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), distinct)
}
