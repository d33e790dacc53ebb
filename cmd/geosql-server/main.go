package main

import (
	"context"
	"geosql/pkg/api"
	"geosql/pkg/flight"
	"geosql/pkg/spatialdb"
	"log"
	"os"
	"strconv"
	"time"
)

func main() {
	// Load environment variables
	cfg := spatialdb.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := spatialdb.Open(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal("Failed to open spatial database:", err)
	}
	defer store.Close()

	// Start REST API server in goroutine
	apiServer := api.NewAPIServer(store, port("REST_PORT", 8080))
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// Start Flight server
	if err := flight.StartFlightServer(store, port("FLIGHT_PORT", 50051)); err != nil {
		log.Fatal("Flight server failed:", err)
	}
}

func port(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	p, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %d", key, v, def)
		return def
	}
	return p
}
