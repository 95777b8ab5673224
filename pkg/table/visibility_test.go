package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/concurrency/transaction"
	"reldb/pkg/primitives"
	"reldb/pkg/tuple"
	"reldb/pkg/types"
)

func visRecord(t *testing.T, xmin, xmax primitives.XID, cid primitives.CID, deleted bool) *tuple.Record {
	t.Helper()
	td, err := tuple.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
	require.NoError(t, err)
	rec, err := tuple.NewRecordWithFields(td, types.NewIntField(0))
	require.NoError(t, err)
	rec.Header = tuple.RecordHeader{Deleted: deleted, Xmin: xmin, Xmax: xmax, Cid: cid}
	return rec
}

func xids(ids ...primitives.XID) map[primitives.XID]struct{} {
	out := make(map[primitives.XID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestVisibilityRepeatableRead(t *testing.T) {
	const reader primitives.XID = 10
	const readerCid primitives.CID = 5

	tests := []struct {
		name    string
		rec     *tuple.Record
		active  map[primitives.XID]struct{}
		visible bool
	}{
		{
			name:    "committed earlier insert is visible",
			rec:     visRecord(t, 3, primitives.NullXID, 0, false),
			active:  xids(),
			visible: true,
		},
		{
			name:    "insert by active transaction is invisible",
			rec:     visRecord(t, 3, primitives.NullXID, 0, false),
			active:  xids(3),
			visible: false,
		},
		{
			name:    "insert by later transaction is invisible",
			rec:     visRecord(t, 20, primitives.NullXID, 0, false),
			active:  xids(),
			visible: false,
		},
		{
			name:    "deleted by committed earlier deleter is invisible",
			rec:     visRecord(t, 3, 4, 0, true),
			active:  xids(),
			visible: false,
		},
		{
			name:    "deleted by still-active deleter is visible",
			rec:     visRecord(t, 3, 12, 0, true),
			active:  xids(12),
			visible: true,
		},
		{
			name:    "deleted by later transaction is visible to older snapshot",
			rec:     visRecord(t, 3, 20, 0, true),
			active:  xids(),
			visible: true,
		},
		{
			name:    "own earlier-command insert is visible",
			rec:     visRecord(t, reader, primitives.NullXID, 2, false),
			active:  xids(),
			visible: true,
		},
		{
			name:    "own same-command insert is invisible",
			rec:     visRecord(t, reader, primitives.NullXID, readerCid, false),
			active:  xids(),
			visible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVisible(transaction.RepeatableRead, reader, readerCid, tt.active, tt.rec)
			assert.Equal(t, tt.visible, got)

			// Serializable shares the snapshot rules.
			assert.Equal(t, tt.visible,
				IsVisible(transaction.Serializable, reader, readerCid, tt.active, tt.rec))
		})
	}
}

func TestVisibilityReadCommitted(t *testing.T) {
	const reader primitives.XID = 10
	const readerCid primitives.CID = 5

	tests := []struct {
		name    string
		rec     *tuple.Record
		active  map[primitives.XID]struct{}
		visible bool
	}{
		{
			name:    "committed insert is visible regardless of xid order",
			rec:     visRecord(t, 20, primitives.NullXID, 0, false),
			active:  xids(),
			visible: true,
		},
		{
			name:    "insert by active transaction is invisible",
			rec:     visRecord(t, 20, primitives.NullXID, 0, false),
			active:  xids(20),
			visible: false,
		},
		{
			name:    "own insert from earlier command is visible even while active",
			rec:     visRecord(t, reader, primitives.NullXID, 2, false),
			active:  xids(reader),
			visible: true,
		},
		{
			name:    "deleted by committed deleter is invisible",
			rec:     visRecord(t, 3, 4, 0, true),
			active:  xids(),
			visible: false,
		},
		{
			name:    "deleted by active other transaction is visible",
			rec:     visRecord(t, 3, 20, 0, true),
			active:  xids(20),
			visible: true,
		},
		{
			name:    "own delete is invisible even while active",
			rec:     visRecord(t, 3, reader, 0, true),
			active:  xids(reader),
			visible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVisible(transaction.ReadCommitted, reader, readerCid, tt.active, tt.rec)
			assert.Equal(t, tt.visible, got)
		})
	}
}

func TestVisibilityIsDeterministic(t *testing.T) {
	rec := visRecord(t, 3, 4, 1, true)
	active := xids(4)

	first := IsVisible(transaction.RepeatableRead, 10, 0, active, rec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IsVisible(transaction.RepeatableRead, 10, 0, active, rec))
	}
}
