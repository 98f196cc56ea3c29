package metrics

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courtsync-io/courtsync/internal/logging"
)

// Server exposes /metrics for Prometheus scraping while a collection run is
// in flight. The binary is short-lived, so the server is started per run and
// torn down with it; scrape failures never affect the run outcome.
type Server struct {
	mu        sync.RWMutex
	addr      string
	boundAddr string
	handler   http.Handler
	server    *http.Server
}

// NewServer serves the default registry, where the collector constructors
// register themselves.
func NewServer(addr string) *Server {
	return &Server{addr: addr, handler: promhttp.Handler()}
}

// NewServerWithRegistry serves a private registry, keeping tests off the
// process-global one.
func NewServerWithRegistry(addr string, g prometheus.Gatherer) *Server {
	return &Server{addr: addr, handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{})}
}

// Start binds the listener and serves in the background. Use addr ":0" to
// bind an ephemeral port, readable afterwards from Addr.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.handler)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Warnf("metrics server stopped", map[string]any{"error": err.Error()})
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}

// Close drains in-flight scrapes and shuts the server down. Safe to call on
// a server that never started.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
