package frame

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfalllabs/spatialdb/pkg/srs"
)

func buildWKTFrame(t *testing.T) *DataFrame {
	t.Helper()
	pool := memory.NewGoAllocator()

	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "name", Type: arrow.BinaryTypes.String},
			{Name: "wkt", Type: arrow.BinaryTypes.String},
		},
		nil,
	)

	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).AppendValues([]string{"a", "b"}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{
		"POINT(-114 46.87)",
		"LINESTRING(0 0,1 1)",
	}, nil)

	rec := builder.NewRecordBatch()
	df, err := NewDataFrame([]arrow.RecordBatch{rec})
	require.NoError(t, err)
	return df
}

func TestGeoDataFrameFromWKT(t *testing.T) {
	df := buildWKTFrame(t)

	ref := srs.Ref{SRID: 4326, AuthName: "epsg", Name: "WGS 84"}
	gdf, err := GeoDataFrameFromWKT(df, "wkt", ref)
	require.NoError(t, err)
	defer gdf.Release()

	assert.True(t, gdf.HasGeometry())
	assert.Equal(t, []string{"name"}, gdf.Columns())
	assert.Equal(t, 4326, gdf.SRS().SRID)

	p, ok := gdf.Geometry(0).(orb.Point)
	require.True(t, ok)
	assert.Equal(t, orb.Point{-114, 46.87}, p)

	t.Run("mixed types promote to collection name", func(t *testing.T) {
		name, mixed := gdf.GeometryType()
		assert.True(t, mixed)
		assert.Equal(t, "GEOMETRYCOLLECTION", name)
	})

	t.Run("promote multi", func(t *testing.T) {
		gdf.PromoteMulti()
		_, ok := gdf.Geometry(0).(orb.MultiPoint)
		assert.True(t, ok)
		_, ok = gdf.Geometry(1).(orb.MultiLineString)
		assert.True(t, ok)
	})

	t.Run("wkt render", func(t *testing.T) {
		vals := gdf.WKTValues()
		require.Len(t, vals, 2)
		assert.Contains(t, vals[0], "MULTIPOINT")
	})
}

func TestGeoDataFrameGeometryCountMismatch(t *testing.T) {
	df := buildTestFrame(t)
	defer df.Release()

	_, err := NewGeoDataFrame(df, "geometry", []orb.Geometry{orb.Point{0, 0}}, srs.Ref{})
	assert.Error(t, err)
}

func TestToGeoJSON(t *testing.T) {
	df := buildWKTFrame(t)

	gdf, err := GeoDataFrameFromWKT(df, "wkt", srs.Ref{SRID: 4326, AuthName: "epsg"})
	require.NoError(t, err)
	defer gdf.Release()

	raw, err := gdf.ToGeoJSON()
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, "a", fc.Features[0].Properties["name"])

	t.Run("plain frame has nothing to convert", func(t *testing.T) {
		plain := NewPlainGeoDataFrame(buildTestFrame(t))
		defer plain.Release()

		_, err := plain.ToGeoJSON()
		assert.Error(t, err)
	})
}
