// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gateway

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
)

// DefaultWriteTimeout bounds how long a slow client can stall a write.
const DefaultWriteTimeout = 10 * time.Second

// Server accepts gateway connections.
type Server struct {
	addr         string
	authority    Authority
	logger       *slog.Logger
	writeTimeout time.Duration

	mu       sync.RWMutex
	listener net.Listener
	conns    sync.WaitGroup
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

// WithWriteTimeout sets the per-write deadline. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// NewServer creates a server listening on addr once Run is called.
func NewServer(addr string, authority Authority, opts ...Option) (*Server, error) {
	if authority == nil {
		return nil, oops.Code("GATEWAY_CONFIG_INVALID").Errorf("authority is required")
	}
	s := &Server{
		addr:         addr,
		authority:    authority,
		logger:       slog.New(slog.DiscardHandler),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "gateway")
	return s, nil
}

// Addr returns the listen address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run listens and serves until ctx is cancelled, then waits for open
// connections to finish.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return oops.Code("GATEWAY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.logger.Debug("error closing listener", "error", err)
		}
	}()

	defer s.conns.Wait()
	for {
		nc, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.logger.Info("gateway stopped")
				return nil
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.ServeConn(ctx, nc)
		}()
	}
}

// ServeConn serves a single established connection and closes it when done.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	Connections.Inc()
	defer Connections.Dec()

	logger := s.logger
	if addr := nc.RemoteAddr(); addr != nil {
		logger = logger.With("remote_addr", addr.String())
	}
	newConn(nc, s.authority, logger, s.writeTimeout).serve(ctx)
}
