package spatialite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/windfalllabs/spatialdb/pkg/frame"
	"github.com/windfalllabs/spatialdb/pkg/gaia"
)

type ImportSHPOptions struct {
	Charset      string // DBF character encoding, default UTF-8
	SRID         int    // default -1 (unknown)
	GeomColumn   string // default "geometry"
	PKColumn     string // default "PK"
	GeomType     string // default "AUTO"
	Coerce2D     bool
	Compressed   bool
	SpatialIndex bool
	TextDates    bool
	SRIDAuth     string // authority for web lookup, default "esri"
}

// ImportSHP imports an external shapefile into a table by wrapping
// SpatiaLite's ImportSHP function. Faster than LoadGeoDataFrame but
// more sensitive. filename may carry a .shp/.shx/.dbf suffix; it is
// stripped.
func (s *SpatiaLiteDB) ImportSHP(ctx context.Context, filename, table string, opts ImportSHPOptions) (*frame.DataFrame, error) {
	if !s.relaxedSecurity {
		return nil, ErrRelaxedSecurity
	}

	if opts.Charset == "" {
		opts.Charset = "UTF-8"
	}
	if opts.SRID == 0 {
		opts.SRID = -1
	}
	if opts.GeomColumn == "" {
		opts.GeomColumn = geometryColumn
	}
	if opts.PKColumn == "" {
		opts.PKColumn = "PK"
	}
	if opts.GeomType == "" {
		opts.GeomType = "AUTO"
	}
	if opts.SRIDAuth == "" {
		opts.SRIDAuth = "esri"
	}

	filename = normalizeShapefilePath(filename)
	if _, err := os.Stat(filename + ".shp"); err != nil {
		return nil, fmt.Errorf("shapefile not found: %s.shp", filename)
	}

	if opts.SRID > 0 {
		if _, err := s.EnsureSRID(ctx, opts.SRID, opts.SRIDAuth); err != nil {
			return nil, err
		}
	}

	df, err := s.DB.Query(ctx,
		"SELECT ImportSHP(?,?,?,?,?,?,?,?,?,?,?)",
		filename, table, opts.Charset, opts.SRID,
		opts.GeomColumn, opts.PKColumn, opts.GeomType,
		boolArg(opts.Coerce2D), boolArg(opts.Compressed),
		boolArg(opts.SpatialIndex), boolArg(opts.TextDates))
	if err != nil {
		return nil, err
	}

	imported, err := s.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !imported {
		df.Release()
		return nil, fmt.Errorf("shapefile import failed for %s", filename)
	}

	return df, nil
}

type ExportSHPOptions struct {
	GeomColumn string // default "geometry"
	Charset    string // default "UTF-8"
	GeomType   string // default "AUTO": resolved from geometry_columns
}

// ExportSHP exports a table as an external shapefile by wrapping
// SpatiaLite's ExportSHP function. filename names the output without
// the .shp/.shx/.dbf suffix.
func (s *SpatiaLiteDB) ExportSHP(ctx context.Context, table, filename string, opts ExportSHPOptions) (*frame.DataFrame, error) {
	if !s.relaxedSecurity {
		return nil, ErrRelaxedSecurity
	}

	if opts.GeomColumn == "" {
		opts.GeomColumn = geometryColumn
	}
	if opts.Charset == "" {
		opts.Charset = "UTF-8"
	}
	if opts.GeomType == "" {
		opts.GeomType = "AUTO"
	}

	exists, err := s.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %s not found", table)
	}

	filename = normalizeShapefilePath(filename)

	if opts.GeomType == "AUTO" {
		data, err := s.GeometryData(ctx, table)
		if err != nil {
			return nil, err
		}
		// Strip the dimension component of the class code.
		name, err := gaia.TypeName(uint32(data.GeometryType % 1000))
		if err != nil {
			return nil, err
		}
		opts.GeomType = name
	}

	df, err := s.DB.Query(ctx,
		"SELECT ExportSHP(?,?,?,?)",
		table, opts.GeomColumn, filename, opts.Charset)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filename + ".shp"); err != nil {
		df.Release()
		return nil, fmt.Errorf("shapefile export failed for %s", table)
	}

	return df, nil
}

// normalizeShapefilePath strips a shapefile member suffix and
// normalizes path separators.
func normalizeShapefilePath(filename string) string {
	ext := filepath.Ext(filename)
	switch strings.ToLower(ext) {
	case ".shp", ".shx", ".dbf":
		filename = strings.TrimSuffix(filename, ext)
	}
	return strings.ReplaceAll(filename, "\\", "/")
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
