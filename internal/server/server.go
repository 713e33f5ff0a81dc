// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultStubDelay is how long /api/generate pretends to think.
	DefaultStubDelay = 1400 * time.Millisecond

	// MaxRequestBodySize is the default request body cap (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// DefaultRateLimit is requests per second per client IP.
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the per-IP burst size.
	DefaultRateBurst = 20

	instrumentationName = "github.com/jeranaias/parley/internal/server"
)

// Forwarder sends a messages array to the chat provider untouched.
// *cloud.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, messages json.RawMessage) ([]byte, error)
}

// Config holds server settings.
type Config struct {
	Addr string

	// Production hides error details in 500 responses.
	Production bool

	// StubDelay is the simulated latency of /api/generate. Zero means no delay.
	StubDelay time.Duration

	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		StubDelay:    DefaultStubDelay,
		RateLimit:    DefaultRateLimit,
		RateBurst:    DefaultRateBurst,
		MaxBodyBytes: MaxRequestBodySize,
	}
}

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts requests served since start.
type Stats struct {
	StartTime time.Time
	Chat      atomic.Int64
	Generate  atomic.Int64
	Failures  atomic.Int64
}

// StatsResponse is the GET /stats payload.
type StatsResponse struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Chat          int64 `json:"chat_requests"`
	Generate      int64 `json:"generate_requests"`
	Failures      int64 `json:"failures"`
}

// Snapshot returns the counters as a response payload.
func (s *Stats) Snapshot() StatsResponse {
	return StatsResponse{
		UptimeSeconds: int64(time.Since(s.StartTime).Seconds()),
		Chat:          s.Chat.Load(),
		Generate:      s.Generate.Load(),
		Failures:      s.Failures.Load(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves the chat proxy and stub generation routes.
type Server struct {
	cfg       Config
	forwarder Forwarder
	logger    *slog.Logger
	router    *http.ServeMux
	handler   http.Handler
	stats     *Stats

	server *http.Server
}

// New creates a Server. forwarder may be nil, in which case /api/chat
// fails with a 500.
func New(cfg Config, forwarder Forwarder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = MaxRequestBodySize
	}

	s := &Server{
		cfg:       cfg,
		forwarder: forwarder,
		logger:    logger,
		router:    http.NewServeMux(),
		stats:     &Stats{StartTime: time.Now()},
	}
	s.setupRoutes()

	s.handler = Chain(
		RecoveryMiddleware(logger),
		CORSMiddleware(),
		LoggingMiddleware(logger),
		TracingMiddleware(logger),
		RateLimitMiddleware(NewRateLimiter(cfg.RateLimit, cfg.RateBurst), logger),
		BodyLimitMiddleware(cfg.MaxBodyBytes),
	)(s.router)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Stats returns the request counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("POST /api/generate", s.handleGenerate)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until
// Shutdown. It returns nil after a graceful shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("SERVER_START", "addr", ln.Addr().String(), "production", s.cfg.Production)
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	snap := s.stats.Snapshot()
	s.logger.Info("SERVER_SHUTDOWN",
		"chat_requests", snap.Chat,
		"generate_requests", snap.Generate,
		"failures", snap.Failures)
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
