package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer serves health, metrics, status, and dashboards.
type HTTPServer struct {
	Server *http.Server
}

func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{Server: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *HTTPServer) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
