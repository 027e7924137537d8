package frame

import (
	"os"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestFrame(t *testing.T) *DataFrame {
	t.Helper()
	pool := memory.NewGoAllocator()

	// Schema
	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "name", Type: arrow.BinaryTypes.String},
			{Name: "population", Type: arrow.PrimitiveTypes.Int64},
			{Name: "area", Type: arrow.PrimitiveTypes.Float64},
		},
		nil,
	)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).AppendValues([]string{"missoula", "helena", "bozeman"}, nil)
	builder.Field(1).(*array.Int64Builder).AppendValues([]int64{73489, 32091, 53293}, nil)
	builder.Field(2).(*array.Float64Builder).AppendValues([]float64{29.08, 16.47, 20.6}, nil)

	rec := builder.NewRecordBatch()

	df, err := NewDataFrame([]arrow.RecordBatch{rec})
	require.NoError(t, err)
	return df
}

func TestDataFrame(t *testing.T) {
	df := buildTestFrame(t)
	defer df.Release()

	t.Run("columns and rows", func(t *testing.T) {
		assert.Equal(t, []string{"name", "population", "area"}, df.Columns())
		assert.Equal(t, 3, df.NumRows())
		assert.False(t, df.Empty())
		assert.Equal(t, 1, df.ColumnIndex("population"))
		assert.Equal(t, -1, df.ColumnIndex("missing"))
	})

	t.Run("value access", func(t *testing.T) {
		v, err := df.Value(0, 0)
		require.NoError(t, err)
		assert.Equal(t, "missoula", v)

		v, err = df.Value(2, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(53293), v)

		_, err = df.Value(3, 0)
		assert.Error(t, err)
		_, err = df.Value(0, 9)
		assert.Error(t, err)
	})

	t.Run("column values", func(t *testing.T) {
		vals, err := df.ColumnValues("area")
		require.NoError(t, err)
		assert.Equal(t, []any{29.08, 16.47, 20.6}, vals)

		_, err = df.ColumnValues("missing")
		assert.Error(t, err)
	})
}

func TestWithStringColumn(t *testing.T) {
	df := buildTestFrame(t)
	defer df.Release()

	out, err := df.WithStringColumn("county", []string{"missoula", "lewis and clark", "gallatin"})
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"name", "population", "area", "county"}, out.Columns())
	v, err := out.Value(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "lewis and clark", v)

	_, err = df.WithStringColumn("county", []string{"too", "short"})
	assert.Error(t, err)

	_, err = df.WithStringColumn("name", []string{"a", "b", "c"})
	assert.Error(t, err, "duplicate column must fail")
}

func TestDropColumn(t *testing.T) {
	df := buildTestFrame(t)
	defer df.Release()

	out, err := df.DropColumn("population")
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []string{"name", "area"}, out.Columns())
	assert.Equal(t, 3, out.NumRows())

	_, err = df.DropColumn("missing")
	assert.Error(t, err)
}

func TestDerivedFrameOwnership(t *testing.T) {
	df := buildTestFrame(t)
	defer df.Release()

	// Derived frames hold their own references: releasing one side must
	// not invalidate the other.
	dropped, err := df.DropColumn("area")
	require.NoError(t, err)

	withWKT, err := dropped.WithStringColumn("geometry", []string{
		"POINT(-114.01 46.87)", "POINT(-112.02 46.59)", "POINT(-111.04 45.68)",
	})
	require.NoError(t, err)

	dropped.Release()

	v, err := withWKT.Value(0, 2)
	require.NoError(t, err)
	assert.Equal(t, "POINT(-114.01 46.87)", v)

	withWKT.Release()

	v, err = df.Value(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "missoula", v)
}

func TestSink(t *testing.T) {
	df := buildTestFrame(t)

	require.NoError(t, df.Sink("frame_test"))
	require.True(t, df.IsMaterialized())

	path := *df.SourceFile()
	_, err := os.Stat(path)
	assert.NoError(t, err)

	df.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "sink temp dir should be removed on release")
}

func TestLedger(t *testing.T) {
	var ledger Ledger
	ledger.Append("CREATE TABLE t (id INTEGER)", 1)
	ledger.Append("INSERT INTO t VALUES (?)", 42)

	var other Ledger
	other.Append("VACUUM", 1)
	ledger.Extend(&other)

	assert.Equal(t, 3, ledger.Len())

	df, err := ledger.Frame()
	require.NoError(t, err)
	defer df.Release()

	assert.Equal(t, []string{"SQL", "Result"}, df.Columns())
	assert.Equal(t, 3, df.NumRows())

	v, err := df.Value(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}
