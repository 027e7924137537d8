package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/windfalllabs/spatialdb/pkg/frame"
	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

// APIHandler handles REST API requests against a SpatiaLite database
type APIHandler struct {
	db *spatialite.SpatiaLiteDB
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(db *spatialite.SpatiaLiteDB) *APIHandler {
	return &APIHandler{
		db: db,
	}
}

// QueryRequest represents a SQL query request
type QueryRequest struct {
	SQL string `json:"sql"`
}

// TableResponse represents a non-spatial query result
type TableResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueryHandler handles POST requests that run a SQL query. Spatial
// results come back as GeoJSON, tabular results as columns and rows.
func (h *APIHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	defer r.Body.Close()

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		h.sendError(w, http.StatusBadRequest, "missing required sql field")
		return
	}

	gdf, err := h.db.Query(r.Context(), req.SQL)
	if err != nil {
		h.sendError(w, queryErrorStatus(err), fmt.Sprintf("query failed: %v", err))
		return
	}
	defer gdf.Release()

	if gdf.HasGeometry() {
		geojsonBytes, err := gdf.ToGeoJSON()
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to serialize result to GeoJSON: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(geojsonBytes)
		return
	}

	resp, err := tableResponse(gdf.DataFrame)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to serialize result: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// TablesHandler handles GET requests that list the database tables
func (h *APIHandler) TablesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "only GET method is allowed")
		return
	}

	names, err := h.db.TableNames(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list tables: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string][]string{"tables": names})
}

func tableResponse(df *frame.DataFrame) (*TableResponse, error) {
	resp := &TableResponse{
		Columns: df.Columns(),
		Rows:    make([][]any, 0, df.NumRows()),
	}

	for row := 0; row < df.NumRows(); row++ {
		out := make([]any, len(resp.Columns))
		for col := range resp.Columns {
			v, err := df.Value(row, col)
			if err != nil {
				return nil, err
			}
			out[col] = v
		}
		resp.Rows = append(resp.Rows, out)
	}

	return resp, nil
}

// queryErrorStatus maps a query failure to an HTTP status: errors the
// SQL engine raised are the caller's fault, everything after (geometry
// decoding, SRS resolution) is ours.
func queryErrorStatus(err error) int {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// sendError sends an error response as JSON
func (h *APIHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
