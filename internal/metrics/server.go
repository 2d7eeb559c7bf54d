// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/remcon/remcon/internal/core/serverbase"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultAddress         = "127.0.0.1:9464"
	defaultStartupTimeout  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrNoMetrics is returned by NewServer without a Metrics instance.
var ErrNoMetrics = errors.New("metrics server: no metrics configured")

type (
	// ServerConfig holds immutable configuration for the HTTP server.
	ServerConfig struct {
		// Address to listen on (default: 127.0.0.1:9464).
		Address string
		// Metrics is served on /metrics. Required.
		Metrics *Metrics
		// Ready backs /readyz; nil always reports ready.
		Ready           func() bool
		StartupTimeout  time.Duration
		ShutdownTimeout time.Duration
		// Logger defaults to stderr with the "metrics" prefix.
		Logger *log.Logger
	}

	// Server serves metrics and health probes over HTTP.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		cfg    ServerConfig
		logger *log.Logger

		mu   sync.Mutex
		http *http.Server
		addr string
	}
)

// NewServer creates the HTTP server. It does not bind until Start.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Metrics == nil {
		return nil, ErrNoMetrics
	}
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "metrics"})
	}
	return &Server{
		Base:   serverbase.NewBase(serverbase.WithName("metrics server")),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.cfg.Ready != nil && !s.cfg.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		_, _ = w.Write([]byte("ready\n"))
	})
	return r
}

// Start binds the address and blocks until the server is serving, startup
// fails, or the startup timeout expires.
func (s *Server) Start(ctx context.Context) error {
	if err := s.TransitionToStarting(ctx); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	var lc net.ListenConfig
	ln, err := lc.Listen(startupCtx, "tcp", s.cfg.Address)
	if err != nil {
		s.TransitionToFailed(fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err))
		return s.LastError()
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.AddGoroutine()
	go func() {
		defer s.DoneGoroutine()
		s.TransitionToRunning()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "err", err)
			s.SendError(err)
		}
	}()

	select {
	case <-s.StartedChannel():
		s.logger.Info("metrics server started", "address", s.Address())
		return nil
	case err := <-s.Err():
		_ = ln.Close()
		s.TransitionToFailed(err)
		return err
	case <-startupCtx.Done():
		_ = ln.Close()
		s.TransitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

// Stop shuts the HTTP server down gracefully. Safe to call multiple times.
func (s *Server) Stop() error {
	return s.Shutdown(func() error {
		s.mu.Lock()
		srv := s.http
		s.mu.Unlock()
		if srv == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// Address returns the bound host:port, or "" before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
