package api

import (
	"context"
	"log"
	"net/http"
)

// Server wraps the http.Server to provide graceful shutdown.
type Server struct {
	httpServer *http.Server
}

// NewServer creates and configures the local API server the UI layer
// talks to.
func NewServer(port string, h *Handlers) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: NewRouter(h),
		},
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	log.Printf("starting HTTP server on port %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not start HTTP server: %v", err)
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
