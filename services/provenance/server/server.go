// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/provenance/services/provenance/detector"
)

// ServiceVersion is the HTTP service version.
const ServiceVersion = "0.1.0"

// ServiceName names the service in traces.
const ServiceName = "provenance"

// ErrNilDetector is returned by New when no detector is supplied.
var ErrNilDetector = errors.New("detector must not be nil")

// =============================================================================
// Configuration
// =============================================================================

// Config holds the HTTP settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// RateLimit is the sustained detect requests per second. Zero or
	// negative disables limiting.
	RateLimit float64

	// Burst is the token-bucket size.
	Burst int

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the standard HTTP settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		RateLimit:       20,
		Burst:           40,
		MaxBodyBytes:    4 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// =============================================================================
// Server
// =============================================================================

// Server is the HTTP front end of a Detector.
type Server struct {
	cfg      Config
	detector *detector.Detector
	logger   *slog.Logger
	limiter  *rate.Limiter
	registry *prometheus.Registry
	metrics  *httpMetrics
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry sets the Prometheus registry that receives the HTTP request
// metrics. Default: a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New builds a Server around d.
//
// Description:
//
//	Creates the gin engine, installs tracing, request-id, logging and
//	metrics middleware, and registers the routes.
//
// Inputs:
//
//	d - The detector. Must not be nil.
//	cfg - HTTP settings.
//	opts - Optional collaborators.
//
// Outputs:
//
//	*Server - Ready to serve.
//	error - ErrNilDetector, or a metrics registration failure.
func New(d *detector.Detector, cfg Config, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, ErrNilDetector
	}

	s := &Server{
		cfg:      cfg,
		detector: d,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	m, err := newHTTPMetrics(s.registry)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	s.metrics = m

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(requestID(), s.instrument(), s.logRequests())
	SetupRoutes(router, s)
	s.engine = router

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
//
// Outputs:
//
//	error - nil after a clean shutdown, otherwise the listen or shutdown
//	        failure.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("provenance server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down provenance server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
