// Package spatialite layers SpatiaLite awareness on top of the SQLite
// wrapper: geometry BLOB decoding on query results, geometry-aware
// table loading, shapefile import/export and spatial reference
// management.
package spatialite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"

	"github.com/windfalllabs/spatialdb/pkg/db"
	"github.com/windfalllabs/spatialdb/pkg/frame"
	"github.com/windfalllabs/spatialdb/pkg/gaia"
	"github.com/windfalllabs/spatialdb/pkg/srs"
)

const (
	driverName     = "sqlite3_spatialite"
	geometryColumn = "geometry"
)

var (
	// ErrRelaxedSecurity is returned by operations that need
	// SPATIALITE_SECURITY=relaxed (ImportSHP, ExportSHP).
	ErrRelaxedSecurity = errors.New("operation requires SPATIALITE_SECURITY=relaxed")

	// ErrSRIDNotFound is returned when a decoded SRID has no
	// spatial_ref_sys entry.
	ErrSRIDNotFound = errors.New("srid not found")
)

var registerOnce sync.Once

func registerDriver(extension string) {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			Extensions: []string{extension},
		})
	})
}

// modSpatialitePath resolves the mod_spatialite location: the
// MOD_SPATIALITE env var when set, otherwise a platform default.
func modSpatialitePath() string {
	if p := os.Getenv("MOD_SPATIALITE"); p != "" {
		return p
	}
	if runtime.GOOS == "linux" {
		return "/usr/local/lib/mod_spatialite.so"
	}
	return "mod_spatialite"
}

// SpatiaLiteDB wraps a SQLite connection with the mod_spatialite
// extension loaded.
type SpatiaLiteDB struct {
	*db.DB
	path            string
	relaxedSecurity bool
	srsClient       *srs.Client
}

// Open opens (or creates) a SpatiaLite database. Spatial metadata is
// initialized when the database is new. Use ":memory:" for an
// in-memory database.
func Open(ctx context.Context, path string) (*SpatiaLiteDB, error) {
	// ImportSHP, ExportSHP and friends are gated behind relaxed
	// security; assume users want them unless told otherwise.
	if os.Getenv("SPATIALITE_SECURITY") == "" {
		os.Setenv("SPATIALITE_SECURITY", "relaxed")
	}

	registerDriver(modSpatialitePath())

	base, err := db.OpenSQLiteDriver(driverName, path)
	if err != nil {
		return nil, err
	}

	s := &SpatiaLiteDB{
		DB:              base,
		path:            path,
		relaxedSecurity: os.Getenv("SPATIALITE_SECURITY") == "relaxed",
		srsClient:       srs.NewClient(),
	}

	hasMeta, err := s.HasTable(ctx, "geometry_columns")
	if err != nil {
		s.Close()
		return nil, err
	}
	if !hasMeta {
		if _, err := s.Exec(ctx, "SELECT InitSpatialMetaData(1)"); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize spatial metadata: %w", err)
		}
	}

	return s, nil
}

func (s *SpatiaLiteDB) String() string {
	return fmt.Sprintf("SpatialDB[SQLite/SpatiaLite] > %s", s.path)
}

// SetSRSClient overrides the spatialreference.org client.
func (s *SpatiaLiteDB) SetSRSClient(c *srs.Client) {
	s.srsClient = c
}

// Query runs q and decodes the geometry column when the result carries
// one. Results without a geometry column, and results with NULL
// geometries, come back as plain frames.
func (s *SpatiaLiteDB) Query(ctx context.Context, q string, args ...any) (*frame.GeoDataFrame, error) {
	df, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	if df.Empty() || !df.HasColumn(geometryColumn) {
		return frame.NewPlainGeoDataFrame(df), nil
	}

	blobs, err := df.ColumnValues(geometryColumn)
	if err != nil {
		return nil, err
	}

	geoms := make([]orb.Geometry, len(blobs))
	srid := 0
	for i, v := range blobs {
		if v == nil {
			log.Printf("NULL geometry found, returning plain frame")
			return frame.NewPlainGeoDataFrame(df), nil
		}
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("geometry column holds %T, not a blob", v)
		}
		g, gsrid, err := gaia.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		geoms[i] = g
		if i == 0 {
			srid = gsrid
		}
	}

	ref, err := s.RefForSRID(ctx, srid)
	if err != nil {
		return nil, err
	}

	return frame.NewGeoDataFrame(df, geometryColumn, geoms, ref)
}

// HasSRID checks if a spatial reference system is in the database.
func (s *SpatiaLiteDB) HasSRID(ctx context.Context, srid int) (bool, error) {
	var count int
	err := s.SQLX().GetContext(ctx, &count,
		"SELECT count(*) FROM spatial_ref_sys WHERE srid = ?", srid)
	if err != nil {
		return false, fmt.Errorf("failed to check srid %d: %w", srid, err)
	}
	return count == 1, nil
}

// RefForSRID resolves a spatial reference from spatial_ref_sys.
func (s *SpatiaLiteDB) RefForSRID(ctx context.Context, srid int) (srs.Ref, error) {
	var row struct {
		SRID     int            `db:"srid"`
		AuthName sql.NullString `db:"auth_name"`
		Name     sql.NullString `db:"ref_sys_name"`
		Proj4    sql.NullString `db:"proj4text"`
	}

	err := s.SQLX().GetContext(ctx, &row,
		"SELECT srid, auth_name, ref_sys_name, proj4text FROM spatial_ref_sys WHERE srid = ?", srid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return srs.Ref{}, fmt.Errorf("%w: %d", ErrSRIDNotFound, srid)
		}
		return srs.Ref{}, fmt.Errorf("failed to resolve srid %d: %w", srid, err)
	}

	return srs.Ref{
		SRID:     row.SRID,
		AuthName: row.AuthName.String,
		Name:     row.Name.String,
		Proj4:    row.Proj4.String,
	}, nil
}

// EnsureSRID inserts the spatial reference data for srid, fetched from
// spatialreference.org, unless it already exists. Reports whether an
// insert happened.
func (s *SpatiaLiteDB) EnsureSRID(ctx context.Context, srid int, auth string) (bool, error) {
	has, err := s.HasSRID(ctx, srid)
	if err != nil || has {
		return false, err
	}

	stmt, err := s.srsClient.Fetch(ctx, srid, auth, "spatialite")
	if err != nil {
		return false, fmt.Errorf("failed to fetch srid %d from web: %w", srid, err)
	}

	if _, err := s.Exec(ctx, stmt); err != nil {
		return false, fmt.Errorf("failed to insert spatial reference %d: %w", srid, err)
	}
	return true, nil
}

// Geometries returns the geometry_columns table joined with the
// related spatial_ref_sys records.
func (s *SpatiaLiteDB) Geometries(ctx context.Context) (*frame.DataFrame, error) {
	return s.DB.Query(ctx,
		`SELECT g.*, s.ref_sys_name, s.auth_name, s.proj4text
		 FROM geometry_columns g
		 LEFT JOIN spatial_ref_sys s ON g.srid = s.srid`)
}

// GeometryColumnData describes a registered geometry column.
type GeometryColumnData struct {
	TableName      string         `db:"f_table_name"`
	GeometryColumn string         `db:"f_geometry_column"`
	GeometryType   int            `db:"geometry_type"`
	CoordDimension int            `db:"coord_dimension"`
	SRID           int            `db:"srid"`
	RefSysName     sql.NullString `db:"ref_sys_name"`
	AuthName       sql.NullString `db:"auth_name"`
	Proj4Text      sql.NullString `db:"proj4text"`
}

// GeometryData returns the geometry column metadata for a table.
func (s *SpatiaLiteDB) GeometryData(ctx context.Context, table string) (*GeometryColumnData, error) {
	var out GeometryColumnData
	err := s.SQLX().GetContext(ctx, &out,
		`SELECT g.f_table_name, g.f_geometry_column, g.geometry_type,
		        g.coord_dimension, g.srid,
		        s.ref_sys_name, s.auth_name, s.proj4text
		 FROM geometry_columns g
		 LEFT JOIN spatial_ref_sys s ON g.srid = s.srid
		 WHERE g.f_table_name = ?`, table)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("not a spatial table: %s", table)
		}
		return nil, fmt.Errorf("failed to read geometry data for %s: %w", table, err)
	}
	return &out, nil
}

// IsSpatialTable reports whether the table has a registered geometry
// column.
func (s *SpatiaLiteDB) IsSpatialTable(ctx context.Context, table string) (bool, error) {
	var count int
	err := s.SQLX().GetContext(ctx, &count,
		"SELECT count(*) FROM geometry_columns WHERE f_table_name = ?", table)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
