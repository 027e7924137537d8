// Package projection reprojects frames between spatial reference
// systems using the DuckDB spatial extension. Geometry travels as WKT
// through a registered Arrow view, so no coordinate math happens here.
package projection

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/windfalllabs/spatialdb/pkg/frame"
	"github.com/windfalllabs/spatialdb/pkg/srs"
)

const geometryColumn = "geometry"

const transformQuery = `
with
transformed as (
select
* exclude({{.GeomCol}}),
ST_Transform(ST_GeomFromText({{.GeomCol}}), '{{.OriginCRS}}', '{{.TargetCRS}}') as shape
from {{.View}}
)
select * exclude(shape), ST_AsText(shape) as {{.GeomCol}} from transformed
`

// Transform reprojects every geometry in the frame to the target
// reference system. The tabular columns pass through untouched.
func Transform(ctx context.Context, gdf *frame.GeoDataFrame, target srs.Ref) (*frame.GeoDataFrame, error) {
	if !gdf.HasGeometry() {
		return nil, fmt.Errorf("frame carries no geometry to transform")
	}

	c, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ar, err := duckdb.NewArrowFromConn(conn)
	if err != nil {
		return nil, err
	}

	ext, err := ar.QueryContext(ctx, "install spatial; load spatial;")
	if err != nil {
		return nil, fmt.Errorf("failed to load duckdb spatial extension: %w", err)
	}
	ext.Release()

	// Geometry crosses into DuckDB as a WKT string column.
	tabular := gdf.DataFrame
	if tabular.HasColumn(geometryColumn) {
		tabular, err = tabular.DropColumn(geometryColumn)
		if err != nil {
			return nil, err
		}
	}
	withWKT, err := tabular.WithStringColumn(geometryColumn, gdf.WKTValues())
	if err != nil {
		return nil, err
	}
	defer withWKT.Release()

	records := withWKT.Records()
	rr, err := array.NewRecordReader(records[0].Schema(), records)
	if err != nil {
		return nil, err
	}

	view := "frame_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	release, err := ar.RegisterView(rr, view)
	if err != nil {
		return nil, err
	}
	defer release()

	data := map[string]string{
		"GeomCol":   geometryColumn,
		"View":      view,
		"OriginCRS": crsString(gdf.SRS()),
		"TargetCRS": crsString(target),
	}

	templ, err := template.New("transformQuery").Parse(transformQuery)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := templ.Execute(&buf, data); err != nil {
		return nil, err
	}

	reader, err := ar.QueryContext(ctx, buf.String())
	if err != nil {
		return nil, fmt.Errorf("transform query failed: %w", err)
	}
	defer reader.Release()

	var recs []arrow.RecordBatch
	for reader.Next() {
		rec := reader.RecordBatch()
		rec.Retain()
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("transform produced no records")
	}

	out, err := frame.NewDataFrame(recs)
	if err != nil {
		return nil, err
	}
	defer out.Release()

	return frame.GeoDataFrameFromWKT(out, geometryColumn, target)
}

// crsString renders a reference the way DuckDB ST_Transform expects:
// proj4 when known, authority code otherwise.
func crsString(ref srs.Ref) string {
	if ref.Proj4 != "" {
		return ref.Proj4
	}
	if ref.AuthName != "" && ref.SRID != 0 {
		return fmt.Sprintf("%s:%d", strings.ToUpper(ref.AuthName), ref.SRID)
	}
	return fmt.Sprintf("EPSG:%d", ref.SRID)
}
