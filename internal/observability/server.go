// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves Prometheus metrics and liveness/readiness
// checks over HTTP.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessFunc reports why a dependency cannot serve, or nil when it can.
type ReadinessFunc func(ctx context.Context) error

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

type readinessCheck struct {
	name string
	run  ReadinessFunc
}

// Server serves /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	registry   *prometheus.Registry
	checks     []readinessCheck
	failures   *prometheus.CounterVec
	logger     *slog.Logger
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics registers package metrics on the server registry. Each
// package exposes a RegisterMetrics(prometheus.Registerer) for this.
func WithMetrics(register ...func(prometheus.Registerer)) Option {
	return func(s *Server) {
		for _, r := range register {
			r(s.registry)
		}
	}
}

// WithReadinessCheck adds a named check to /healthz/readiness. The service
// is ready only when every check passes.
func WithReadinessCheck(name string, fn ReadinessFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.checks = append(s.checks, readinessCheck{name: name, run: fn})
		}
	}
}

// NewServer creates a server listening on addr ("host:port"; ":9100" for
// all interfaces). It owns a private registry carrying the Go runtime and
// process collectors.
func NewServer(addr string, opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_readiness_check_failures_total",
		Help: "Failed readiness checks by name.",
	}, []string{"check"})
	registry.MustRegister(failures)

	s := &Server{
		addr:     addr,
		registry: registry,
		failures: failures,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start begins serving observability endpoints.
// It returns an error channel that will receive any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("METRICS_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the observability server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			// Restore running state on failure so the server can be stopped again
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	w.Write([]byte("ok\n"))
}

// handleReadiness runs every check and answers 200 when all pass, 503
// otherwise. The body lists each check as "name: ok" or "name: failing";
// failure detail is logged, not returned.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var (
		body  strings.Builder
		ready = true
	)
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := c.run(ctx)
		cancel()
		if err != nil {
			ready = false
			s.failures.WithLabelValues(c.name).Inc()
			s.logger.Warn("readiness check failed", "check", c.name, "error", err)
			fmt.Fprintf(&body, "%s: failing\n", c.name)
			continue
		}
		fmt.Fprintf(&body, "%s: ok\n", c.name)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if len(s.checks) == 0 {
		body.WriteString("ok\n")
	}
	//nolint:errcheck // health check write error is acceptable, client may disconnect
	io.WriteString(w, body.String())
}
