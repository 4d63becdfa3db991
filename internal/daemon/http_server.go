package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/services"
)

// HTTPServer serves /metrics and /healthz while the daemon runs.
type HTTPServer struct {
	addr    string
	handler http.Handler

	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
}

// NewHTTPServer creates an HTTP service listening on addr.
func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{addr: addr, handler: handler}
}

// Name implements services.ManagedService.
func (s *HTTPServer) Name() string { return "metrics-http" }

// Dependencies implements services.ManagedService.
func (s *HTTPServer) Dependencies() []string { return nil }

// Start binds the listener synchronously so port conflicts fail the daemon start.
func (s *HTTPServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to listen").
			WithContext("addr", s.addr).
			Build()
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", logfields.Error(err))
		}
	}(s.server)

	slog.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// Health implements services.ManagedService.
func (s *HTTPServer) Health() services.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return services.Healthy()
	}
	return services.Unhealthy("server not running")
}

// Addr returns the bound address, useful when listening on port 0.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode JSON response", logfields.Error(err))
	}
}
