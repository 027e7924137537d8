package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

// APIServer represents the REST API server
type APIServer struct {
	db     *spatialite.SpatiaLiteDB
	port   int
	server *http.Server
}

// NewAPIServer creates a new API server instance
func NewAPIServer(db *spatialite.SpatiaLiteDB, port int) *APIServer {
	return &APIServer{
		db:   db,
		port: port,
	}
}

// Start starts the REST API server
func (s *APIServer) Start() error {
	handler := NewAPIHandler(s.db)

	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/api/v1/query", handler.QueryHandler)
	mux.HandleFunc("/api/v1/tables", handler.TablesHandler)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	log.Printf("Starting REST API server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the REST API server
func (s *APIServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
