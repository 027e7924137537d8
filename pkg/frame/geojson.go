package frame

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// ToGeoJSON converts the GeoDataFrame to a GeoJSON FeatureCollection.
// Non-geometry columns become feature properties.
func (g *GeoDataFrame) ToGeoJSON() ([]byte, error) {
	if !g.HasGeometry() {
		return nil, fmt.Errorf("no geometry to convert")
	}

	fc := geojson.NewFeatureCollection()
	geomIdx := g.ColumnIndex(g.geomColumn)

	for row := 0; row < g.NumRows(); row++ {
		feature := geojson.NewFeature(g.geoms[row])

		for col, name := range g.Columns() {
			if col == geomIdx {
				continue
			}
			val, err := g.Value(row, col)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s at row %d: %w", name, row, err)
			}
			if val == nil {
				continue
			}
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			feature.Properties[name] = val
		}

		fc.Append(feature)
	}

	return json.MarshalIndent(fc, "", "  ")
}
