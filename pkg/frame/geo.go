package frame

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/windfalllabs/spatialdb/pkg/srs"
)

// GeoDataFrame is a DataFrame with a decoded geometry column. A frame
// without geometries behaves as a plain DataFrame.
type GeoDataFrame struct {
	*DataFrame
	geomColumn string
	geoms      []orb.Geometry
	ref        srs.Ref
}

// NewGeoDataFrame attaches decoded geometries to a frame. The geometry
// slice must either be empty or cover every row.
func NewGeoDataFrame(df *DataFrame, geomColumn string, geoms []orb.Geometry, ref srs.Ref) (*GeoDataFrame, error) {
	if len(geoms) > 0 && len(geoms) != df.NumRows() {
		return nil, fmt.Errorf("expected %d geometries, got %d", df.NumRows(), len(geoms))
	}

	return &GeoDataFrame{
		DataFrame:  df,
		geomColumn: geomColumn,
		geoms:      geoms,
		ref:        ref,
	}, nil
}

// NewPlainGeoDataFrame wraps a non-spatial frame.
func NewPlainGeoDataFrame(df *DataFrame) *GeoDataFrame {
	return &GeoDataFrame{DataFrame: df}
}

// GeoDataFrameFromWKT parses a WKT string column into geometries and
// drops the column from the tabular part.
func GeoDataFrameFromWKT(df *DataFrame, wktColumn string, ref srs.Ref) (*GeoDataFrame, error) {
	values, err := df.ColumnValues(wktColumn)
	if err != nil {
		return nil, err
	}

	geoms := make([]orb.Geometry, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			if b, isBytes := v.([]byte); isBytes {
				s = string(b)
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("row %d: wkt column holds %T, not text", i, v)
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to parse wkt: %w", i, err)
		}
		geoms[i] = g
	}

	tabular, err := df.DropColumn(wktColumn)
	if err != nil {
		return nil, err
	}

	return NewGeoDataFrame(tabular, "geometry", geoms, ref)
}

// HasGeometry reports whether the frame carries decoded geometries.
func (g *GeoDataFrame) HasGeometry() bool {
	return len(g.geoms) > 0
}

func (g *GeoDataFrame) Geometries() []orb.Geometry {
	return g.geoms
}

func (g *GeoDataFrame) Geometry(i int) orb.Geometry {
	return g.geoms[i]
}

// GeometryColumn returns the name of the source geometry column.
func (g *GeoDataFrame) GeometryColumn() string {
	return g.geomColumn
}

// Get SRS
func (g *GeoDataFrame) SRS() srs.Ref {
	return g.ref
}

// GeometryType returns the collective SpatiaLite type name of the
// geometries, and whether the set is mixed.
func (g *GeoDataFrame) GeometryType() (string, bool) {
	types := make(map[string]struct{})
	last := ""
	for _, geom := range g.geoms {
		last = geometryTypeName(geom)
		types[last] = struct{}{}
	}

	if len(types) == 1 {
		return last, false
	}
	return "GEOMETRYCOLLECTION", true
}

// PromoteMulti casts single geometries to their Multi counterparts.
// SpatiaLite tables accept only one geometry class, so mixed
// single/multi sets are promoted before loading.
func (g *GeoDataFrame) PromoteMulti() {
	for i, geom := range g.geoms {
		switch t := geom.(type) {
		case orb.Point:
			g.geoms[i] = orb.MultiPoint{t}
		case orb.LineString:
			g.geoms[i] = orb.MultiLineString{t}
		case orb.Polygon:
			g.geoms[i] = orb.MultiPolygon{t}
		}
	}
}

// WKTValues renders every geometry as Well-Known Text.
func (g *GeoDataFrame) WKTValues() []string {
	out := make([]string, len(g.geoms))
	for i, geom := range g.geoms {
		out[i] = wkt.MarshalString(geom)
	}
	return out
}

func geometryTypeName(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return "POINT"
	case orb.LineString:
		return "LINESTRING"
	case orb.Polygon:
		return "POLYGON"
	case orb.MultiPoint:
		return "MULTIPOINT"
	case orb.MultiLineString:
		return "MULTILINESTRING"
	case orb.MultiPolygon:
		return "MULTIPOLYGON"
	default:
		return "GEOMETRYCOLLECTION"
	}
}
