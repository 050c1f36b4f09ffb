// Package http serves the widget over HTTP using Gin: the server lifecycle
// and the router that wires middleware to the handlers.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
)

// Server owns the gin engine and the http.Server in front of it.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	cfg    *config.ServerConfig
	logger *slog.Logger

	// bound is the listener address once serving, else empty.
	bound atomic.Pointer[string]
}

// New builds a server for cfg. Routes are added through Engine before Start.
func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(limitBody(cfg.MaxRequestSize))

	return &Server{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           engine,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// Engine exposes the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds the configured address and serves in the background. A bind
// failure or a serve error arrives on the returned channel, which is closed
// once the server stops.
func (s *Server) Start() <-chan error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("listen on %s: %w", s.http.Addr, err)
		close(errCh)

		return errCh
	}

	return s.StartOn(ln)
}

// StartOn serves on ln, e.g. one bound to port 0 in tests.
func (s *Server) StartOn(ln net.Listener) <-chan error {
	addr := ln.Addr().String()
	s.bound.Store(&addr)

	errCh := make(chan error, 1)

	s.logger.Info("serving widget",
		slog.String("addr", addr),
		slog.Duration("read_timeout", s.cfg.ReadTimeout),
		slog.Duration("write_timeout", s.cfg.WriteTimeout),
		slog.Int64("max_request_size", s.cfg.MaxRequestSize),
	)

	go func() {
		defer close(errCh)

		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("draining HTTP connections")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("HTTP server stopped")

	return nil
}

// Addr is the bound address while serving, else the configured one.
func (s *Server) Addr() string {
	if addr := s.bound.Load(); addr != nil {
		return *addr
	}

	return s.http.Addr
}

// limitBody caps request bodies. Form posts and JSON patches are tiny.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
