package spatialite

import (
	"context"
	"fmt"

	"github.com/windfalllabs/spatialdb/pkg/db"
	"github.com/windfalllabs/spatialdb/pkg/frame"
)

const wktColumn = "wkt"

type LoadGeoOptions struct {
	IfExists db.IfExists
	// SRIDAuth names the authority used when the SRID has to be
	// fetched from the web. Default "esri": most epsg systems already
	// ship in spatial_ref_sys.
	SRIDAuth string
	// SkipValidation leaves invalid geometries as loaded instead of
	// running MakeValid over them.
	SkipValidation bool
}

// LoadGeoDataFrame creates a spatial table from a GeoDataFrame. A
// plain frame with a 'wkt' text column is accepted too. Geometry is
// inserted as WKT, converted with GeomFromText and registered with
// RecoverGeometryColumn. The returned ledger reports every step.
func (s *SpatiaLiteDB) LoadGeoDataFrame(ctx context.Context, gdf *frame.GeoDataFrame, table string, srid int, opts LoadGeoOptions) (*frame.Ledger, error) {
	if opts.SRIDAuth == "" {
		opts.SRIDAuth = "esri"
	}

	ledger := &frame.Ledger{}

	inserted, err := s.EnsureSRID(ctx, srid, opts.SRIDAuth)
	if err != nil {
		return nil, err
	}
	if inserted {
		ledger.Append("EnsureSRID", 1)
	}

	// Auto-convert a Well-Known Text column into geometry.
	if !gdf.HasGeometry() && gdf.HasColumn(wktColumn) {
		converted, err := frame.GeoDataFrameFromWKT(gdf.DataFrame, wktColumn, gdf.SRS())
		if err != nil {
			return nil, err
		}
		gdf = converted
		ledger.Append("wkt.Unmarshal", 1)
	}
	if !gdf.HasGeometry() {
		return nil, fmt.Errorf("frame carries no geometry to load")
	}

	// SpatiaLite accepts a single geometry class per table.
	geomType, mixed := gdf.GeometryType()
	if mixed {
		gdf.PromoteMulti()
		geomType, mixed = gdf.GeometryType()
		if mixed {
			return nil, fmt.Errorf("mixed geometry families cannot be loaded into one table")
		}
		ledger.Append("PromoteMulti", 1)
	}

	tabular := gdf.DataFrame
	if tabular.HasColumn(geometryColumn) {
		dropped, err := tabular.DropColumn(geometryColumn)
		if err != nil {
			return nil, err
		}
		defer dropped.Release()
		tabular = dropped
	}

	withWKT, err := tabular.WithStringColumn(geometryColumn, gdf.WKTValues())
	if err != nil {
		return nil, err
	}
	defer withWKT.Release()

	loadLedger, err := s.LoadDataFrame(ctx, withWKT, table, db.LoadOptions{IfExists: opts.IfExists})
	if err != nil {
		return nil, err
	}
	ledger.Extend(loadLedger)

	// Convert from WKT to SpatiaLite geometry.
	quoted := s.Dialect().Quote(table)
	update := fmt.Sprintf("UPDATE %s SET geometry = GeomFromText(geometry, %d)", quoted, srid)
	res, err := s.Exec(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("failed to convert wkt to geometry: %w", err)
	}
	affected, _ := res.RowsAffected()
	ledger.Append(update, affected)

	// Recover geometry as a registered spatial column.
	var recovered int
	err = s.SQLX().GetContext(ctx, &recovered,
		"SELECT RecoverGeometryColumn(?, ?, ?, ?)", table, geometryColumn, srid, geomType)
	if err != nil {
		return nil, fmt.Errorf("failed to recover geometry column: %w", err)
	}
	ledger.Append("RecoverGeometryColumn(?, ?, ?, ?)", int64(recovered))
	if recovered != 1 {
		return nil, fmt.Errorf("failed to register geometry column on %s", table)
	}

	if !opts.SkipValidation {
		validate := fmt.Sprintf(
			"UPDATE %s SET geometry = MakeValid(geometry) WHERE NOT IsValid(geometry)", quoted)
		res, err := s.Exec(ctx, validate)
		if err != nil {
			return nil, fmt.Errorf("failed to validate geometries: %w", err)
		}
		affected, _ := res.RowsAffected()
		ledger.Append(validate, affected)
	}

	ledger.Append("LoadGeoDataFrame()", int64(gdf.NumRows()))
	return ledger, nil
}

// CreateTableAs materializes a SELECT statement as a new table,
// registering it as spatial when srid is non-zero. The query result is
// round-tripped through a frame so column types survive.
func (s *SpatiaLiteDB) CreateTableAs(ctx context.Context, table, query string, srid int, opts LoadGeoOptions) (*frame.Ledger, error) {
	gdf, err := s.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer gdf.Release()

	if srid != 0 {
		return s.LoadGeoDataFrame(ctx, gdf, table, srid, opts)
	}
	return s.LoadDataFrame(ctx, gdf.DataFrame, table, db.LoadOptions{IfExists: opts.IfExists})
}
