package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/windfalllabs/spatialdb/pkg/api"
	"github.com/windfalllabs/spatialdb/pkg/flight"
	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	path := os.Getenv("SPATIALDB_PATH")
	if path == "" {
		path = ":memory:"
	}

	db, err := spatialite.Open(context.Background(), path)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	log.Printf("Serving %s", db)

	// Start REST API server in goroutine
	restPort := envPort("SPATIALDB_REST_PORT", 8080)
	apiServer := api.NewAPIServer(db, restPort)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// Start Flight server
	flightPort := envPort("SPATIALDB_FLIGHT_PORT", 50051)
	if err := flight.StartFlightServer(db, flightPort); err != nil {
		log.Fatal("Flight server failed:", err)
	}
}

func envPort(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return port
}
