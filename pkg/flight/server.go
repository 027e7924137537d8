package flight

import (
	"fmt"
	"log"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"

	"github.com/windfalllabs/spatialdb/pkg/spatialite"
)

func NewFlightServer(db *spatialite.SpatiaLiteDB) flight.Server {
	server := flight.NewServerWithMiddleware(nil)
	spatialServer := NewSpatialFlightServer(db)
	server.RegisterFlightService(spatialServer)
	return server
}

func StartFlightServer(db *spatialite.SpatiaLiteDB, port int) error {
	addr := fmt.Sprintf(":%d", port)
	server := NewFlightServer(db)
	log.Printf("Starting spatialdb Flight server on %s...\n", addr)
	if err := server.Init(addr); err != nil {
		return err
	}
	return server.Serve()
}

// StartFlightServerWithGRPC allows passing custom gRPC options
func StartFlightServerWithGRPC(db *spatialite.SpatiaLiteDB, port int, opts ...grpc.ServerOption) error {
	addr := fmt.Sprintf(":%d", port)
	server := flight.NewServerWithMiddleware(nil, opts...)
	spatialServer := NewSpatialFlightServer(db)
	server.RegisterFlightService(spatialServer)

	log.Printf("Starting spatialdb Flight server on %s...\n", addr)
	if err := server.Init(addr); err != nil {
		return err
	}
	return server.Serve()
}
