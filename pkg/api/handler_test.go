package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"

	"github.com/windfalllabs/spatialdb/pkg/gaia"
	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

func openTestDB(t *testing.T) *spatialite.SpatiaLiteDB {
	t.Helper()
	db, err := spatialite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Skipf("mod_spatialite unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestQueryHandler_InvalidMethod(t *testing.T) {
	handler := NewAPIHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/query", nil)
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestQueryHandler_InvalidJSON(t *testing.T) {
	handler := NewAPIHandler(nil)

	body := bytes.NewBufferString(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestQueryHandler_MissingSQL(t *testing.T) {
	handler := NewAPIHandler(nil)

	body := bytes.NewBufferString(`{"sql": "  "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestQueryHandler_TabularResult(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE zoning (district TEXT, min_lot_sqft INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO zoning VALUES ('R-8', 8000)"); err != nil {
		t.Fatal(err)
	}

	handler := NewAPIHandler(db)

	body := bytes.NewBufferString(`{"sql": "SELECT * FROM zoning"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp TableResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Columns) != 2 || len(resp.Rows) != 1 {
		t.Errorf("Expected 2 columns and 1 row, got %d columns and %d rows",
			len(resp.Columns), len(resp.Rows))
	}
}

func TestQueryHandler_SpatialResult(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE stations (name TEXT)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "SELECT AddGeometryColumn('stations', 'geometry', 4326, 'POINT', 'XY')"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO stations VALUES ('alpha', GeomFromText('POINT(-114.01 46.87)', 4326))"); err != nil {
		t.Fatal(err)
	}

	handler := NewAPIHandler(db)

	body := bytes.NewBufferString(`{"sql": "SELECT * FROM stations"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fc); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection, got %s", fc.Type)
	}
	if len(fc.Features) != 1 || fc.Features[0].Geometry.Type != "Point" {
		t.Errorf("Expected a single Point feature, got %+v", fc.Features)
	}
	if fc.Features[0].Properties["name"] != "alpha" {
		t.Errorf("Expected name property alpha, got %v", fc.Features[0].Properties["name"])
	}
}

func TestQueryHandler_BadSQL(t *testing.T) {
	db := openTestDB(t)
	handler := NewAPIHandler(db)

	body := bytes.NewBufferString(`{"sql": "SELECT * FROM no_such_table"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestQueryHandler_InternalError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// A geometry blob with an unregistered SRID fails after the SQL
	// engine succeeded; that is a server-side failure, not a bad
	// request.
	if _, err := db.Exec(ctx, "CREATE TABLE odd (geometry BLOB)"); err != nil {
		t.Fatal(err)
	}
	blob, err := gaia.Encode(orb.Point{-114.01, 46.87}, 987654)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(ctx, "INSERT INTO odd VALUES (?)", blob); err != nil {
		t.Fatal(err)
	}

	handler := NewAPIHandler(db)

	body := bytes.NewBufferString(`{"sql": "SELECT * FROM odd"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", body)
	rr := httptest.NewRecorder()

	handler.QueryHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestTablesHandler(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE parcels (pin TEXT)"); err != nil {
		t.Fatal(err)
	}

	handler := NewAPIHandler(db)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables", nil)
	rr := httptest.NewRecorder()

	handler.TablesHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	found := false
	for _, name := range resp["tables"] {
		if name == "parcels" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected parcels in table list, got %v", resp["tables"])
	}
}
