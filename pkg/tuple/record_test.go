package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reldb/pkg/primitives"
	"reldb/pkg/types"
)

func testDesc(t *testing.T) *TupleDescription {
	t.Helper()
	td, err := NewTupleDesc(
		[]types.Type{types.IntType, types.StringType, types.BoolType},
		[]string{"id", "name", "active"},
	)
	require.NoError(t, err)
	return td
}

func TestRecordHeaderRoundTrip(t *testing.T) {
	h := RecordHeader{Deleted: true, Xmin: 7, Xmax: 12, Cid: 3}

	buf := make([]byte, RecordHeaderSize)
	h.SerializeTo(buf)

	var got RecordHeader
	require.NoError(t, got.DeserializeFrom(buf))
	assert.Equal(t, h, got)
}

func TestRecordRoundTrip(t *testing.T) {
	td := testDesc(t)
	rec, err := NewRecordWithFields(td,
		types.NewIntField(42),
		types.NewStringField("alice"),
		types.NewBoolField(true),
	)
	require.NoError(t, err)
	rec.Header.Xmin = 5
	rec.Header.Cid = 2

	buf := make([]byte, rec.Size())
	require.NoError(t, rec.SerializeTo(buf))

	got, err := DeserializeRecord(buf, td)
	require.NoError(t, err)

	assert.Equal(t, rec.Header, got.Header)
	for i := 0; i < td.NumFields(); i++ {
		want, _ := rec.GetField(i)
		have, _ := got.GetField(i)
		assert.True(t, want.Equals(have), "field %d", i)
	}
}

func TestRecordSizeCountsHeaderAndFields(t *testing.T) {
	td := testDesc(t)
	rec, err := NewRecordWithFields(td,
		types.NewIntField(1),
		types.NewStringField("ab"),
		types.NewBoolField(false),
	)
	require.NoError(t, err)

	// header + int(8) + string(4+2) + bool(1)
	assert.Equal(t, uint32(RecordHeaderSize+8+6+1), rec.Size())
}

func TestSetFieldTypeMismatch(t *testing.T) {
	rec := NewRecord(testDesc(t))
	err := rec.SetField(0, types.NewStringField("nope"))
	assert.Error(t, err)
}

func TestAppendCombinesArity(t *testing.T) {
	td := testDesc(t)
	left, err := NewRecordWithFields(td,
		types.NewIntField(1), types.NewStringField("l"), types.NewBoolField(true))
	require.NoError(t, err)
	right, err := NewRecordWithFields(td,
		types.NewIntField(2), types.NewStringField("r"), types.NewBoolField(false))
	require.NoError(t, err)

	combined := left.Append(right)
	require.Equal(t, 6, combined.NumFields())

	f0, _ := combined.GetField(0)
	f3, _ := combined.GetField(3)
	assert.True(t, f0.Equals(types.NewIntField(1)))
	assert.True(t, f3.Equals(types.NewIntField(2)))
}

func TestNullRecordFieldsAreNil(t *testing.T) {
	nullRec := NullRecord(testDesc(t))
	for i := 0; i < nullRec.NumFields(); i++ {
		f, err := nullRec.GetField(i)
		require.NoError(t, err)
		assert.Nil(t, f)
	}
}

func TestSetRid(t *testing.T) {
	rec := NewRecord(testDesc(t))
	assert.False(t, rec.HasRid)

	rid := primitives.NewRid(3, 7)
	rec.SetRid(rid)
	assert.True(t, rec.HasRid)
	assert.True(t, rec.Rid.Equals(rid))
}

func TestCombineDescriptions(t *testing.T) {
	td := testDesc(t)
	combined := Combine(td, td)
	require.NotNil(t, combined)
	assert.Equal(t, 6, combined.NumFields())

	assert.Same(t, td, Combine(td, nil))
	assert.Same(t, td, Combine(nil, td))
}

func TestFindFieldIndex(t *testing.T) {
	td := testDesc(t)

	idx, err := td.FindFieldIndex("name")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = td.FindFieldIndex("missing")
	assert.Error(t, err)
}
