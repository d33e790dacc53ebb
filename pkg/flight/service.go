package flight

import (
	"fmt"
	"geosql/pkg/spatialdb"
	"log"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
)

func NewFlightServer(store *spatialdb.Store, opts ...grpc.ServerOption) flight.Server {
	server := flight.NewServerWithMiddleware(nil, opts...)
	server.RegisterFlightService(NewGeoFlightServer(store))
	return server
}

func StartFlightServer(store *spatialdb.Store, port int) error {
	return StartFlightServerWithGRPC(store, port)
}

// StartFlightServerWithGRPC allows passing custom gRPC options
func StartFlightServerWithGRPC(store *spatialdb.Store, port int, opts ...grpc.ServerOption) error {
	addr := fmt.Sprintf(":%d", port)
	server := NewFlightServer(store, opts...)

	log.Printf("Starting geosql Flight server on %s...\n", addr)
	if err := server.Init(addr); err != nil {
		return err
	}
	return server.Serve()
}
