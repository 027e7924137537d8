package spatialite

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/windfalllabs/spatialdb/pkg/frame"
)

var validDims = map[string]struct{}{
	"XY": {}, "XYZ": {}, "XYM": {}, "XYZM": {},
}

type AlterGeometryOptions struct {
	// SRID reprojects the geometry with ST_Transform. Zero keeps the
	// current spatial reference.
	SRID int
	// Dims casts coordinates to XY, XYZ, XYM or XYZM. Empty keeps the
	// current dimension.
	Dims string
}

// Script run through a cloned table: the original cannot be altered in
// place because geometry columns are registered against it.
const alterGeometryScript = `SELECT DropGeoTable('{{.Table}}_bk');
SELECT CloneTable('main', '{{.Table}}', '{{.Table}}_bk', 1, '::ignore::geometry');
SELECT AddGeometryColumn('{{.Table}}_bk', 'geometry', {{.SRID}}, '{{.GeomType}}', '{{.Dims}}', {{.NotNull}});
UPDATE {{.Table}}_bk SET geometry = (SELECT {{.Funcs}} FROM {{.Table}} WHERE {{.Table}}_bk.rowid = {{.Table}}.rowid);
SELECT DropGeoTable('{{.Table}}');
SELECT CloneTable('main', '{{.Table}}_bk', '{{.Table}}', 1);
SELECT DropGeoTable('{{.Table}}_bk');
VACUUM;`

// AlterGeometry replaces a table with one whose geometry column has
// altered properties: reprojected coordinates, different dimensions,
// or both.
func (s *SpatiaLiteDB) AlterGeometry(ctx context.Context, table string, opts AlterGeometryOptions) (*frame.Ledger, error) {
	if opts.SRID == 0 && opts.Dims == "" {
		return nil, fmt.Errorf("no changes requested for %s", table)
	}

	spatial, err := s.IsSpatialTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !spatial {
		return nil, fmt.Errorf("not a spatial table: %s", table)
	}

	if opts.Dims != "" {
		if _, ok := validDims[opts.Dims]; !ok {
			return nil, fmt.Errorf("not a valid dimension: %s", opts.Dims)
		}
	}

	current, err := s.GeometryData(ctx, table)
	if err != nil {
		return nil, err
	}

	srid := opts.SRID
	var transform string
	if srid == 0 {
		srid = current.SRID
	} else {
		transform = fmt.Sprintf("ST_Transform(geometry, %d)", srid)
	}

	geomType, err := s.scalarString(ctx, fmt.Sprintf(
		"SELECT DISTINCT GeometryType(geometry) FROM %s", s.Dialect().Quote(table)))
	if err != nil {
		return nil, err
	}
	// GeometryType reports e.g. "LINESTRING XYZ"; keep the class only.
	geomType = strings.SplitN(geomType, " ", 2)[0]

	dims := opts.Dims
	var castDims string
	if dims == "" {
		dims, err = s.scalarString(ctx, fmt.Sprintf(
			"SELECT DISTINCT CoordDimension(geometry) FROM %s", s.Dialect().Quote(table)))
		if err != nil {
			return nil, err
		}
	} else {
		castDims = fmt.Sprintf("CastTo%s(geometry)", dims)
	}

	var funcs string
	switch {
	case transform != "" && castDims != "":
		funcs = strings.Replace(transform, "geometry", castDims, 1)
	case transform != "":
		funcs = transform
	case castDims != "":
		funcs = castDims
	default:
		funcs = "geometry"
	}

	data := map[string]any{
		"Table":    table,
		"SRID":     srid,
		"GeomType": geomType,
		"Dims":     dims,
		"NotNull":  1,
		"Funcs":    funcs,
	}

	templ, err := template.New("alterGeometry").Parse(alterGeometryScript)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := templ.Execute(&buf, data); err != nil {
		return nil, err
	}

	script := buf.String()
	if _, err := s.Exec(ctx, script); err != nil {
		return nil, fmt.Errorf("alter geometry script failed: %w", err)
	}

	ledger := &frame.Ledger{}
	ledger.Append(script, 1)
	return ledger, nil
}

func (s *SpatiaLiteDB) scalarString(ctx context.Context, q string) (string, error) {
	var out string
	if err := s.SQLX().GetContext(ctx, &out, q); err != nil {
		return "", fmt.Errorf("query failed: %s: %w", q, err)
	}
	return out, nil
}
