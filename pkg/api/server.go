package api

import (
	"fmt"
	"geosql/pkg/spatialdb"
	"log"
	"net/http"
)

// APIServer represents the REST API server
type APIServer struct {
	store  *spatialdb.Store
	port   int
	server *http.Server
}

// NewAPIServer creates a new API server instance
func NewAPIServer(store *spatialdb.Store, port int) *APIServer {
	return &APIServer{
		store: store,
		port:  port,
	}
}

// Routes returns the request multiplexer of the server.
func (s *APIServer) Routes() http.Handler {
	handler := NewAPIHandler(s.store)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/encode", handler.EncodeHandler)
	mux.HandleFunc("/api/v1/decode", handler.DecodeHandler)
	mux.HandleFunc("/api/v1/predicate", handler.PredicateHandler)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// Start starts the REST API server
func (s *APIServer) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Routes(),
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
