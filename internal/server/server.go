// Package server assembles the HTTP + WebSocket API surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/server/handler"
	"github.com/alanyoungcy/easybet/internal/server/middleware"
	"github.com/alanyoungcy/easybet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
	ReadOnly    bool // register only read endpoints and the WebSocket feed
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Points  *handler.PointsHandler
	Rounds  *handler.RoundHandler
	Tickets *handler.TicketHandler
	Users   *handler.UserHandler
}

// Server is the headless HTTP + WebSocket API server for the betting engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, logging, CORS, auth) and attaches
// the WebSocket hub. limiter may be nil, in which case rate limiting is
// skipped.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Points ledger endpoints.
	mux.HandleFunc("GET /api/points/{account}/balance", handlers.Points.Balance)
	mux.HandleFunc("GET /api/points/allowance", handlers.Points.AllowanceOf)
	mux.HandleFunc("GET /api/points/supply", handlers.Points.Supply)

	// Round lifecycle endpoints. Status recomputation is registered in both
	// modes: it re-derives time-based status and is not privileged.
	mux.HandleFunc("GET /api/rounds", handlers.Rounds.List)
	mux.HandleFunc("GET /api/rounds/{id}", handlers.Rounds.Get)
	mux.HandleFunc("GET /api/rounds/{id}/claims", handlers.Rounds.Claims)
	mux.HandleFunc("GET /api/rounds/{id}/journal", handlers.Rounds.Journal)
	mux.HandleFunc("GET /api/journal", handlers.Rounds.RecentJournal)
	mux.HandleFunc("POST /api/rounds/recompute", handlers.Rounds.RecomputeAll)
	mux.HandleFunc("POST /api/rounds/{id}/recompute", handlers.Rounds.Recompute)

	// Ticket marketplace endpoints.
	mux.HandleFunc("GET /api/tickets/on-sale", handlers.Tickets.OnSale)
	mux.HandleFunc("GET /api/tickets/{id}/owner", handlers.Tickets.Owner)

	if !cfg.ReadOnly {
		mux.HandleFunc("POST /api/points/grant", handlers.Points.Grant)
		mux.HandleFunc("POST /api/points/issue", handlers.Points.Issue)
		mux.HandleFunc("POST /api/points/approve", handlers.Points.Approve)
		mux.HandleFunc("POST /api/rounds", handlers.Rounds.Create)
		mux.HandleFunc("POST /api/rounds/{id}/wager", handlers.Rounds.Wager)
		mux.HandleFunc("POST /api/rounds/{id}/draw", handlers.Rounds.Draw)
		mux.HandleFunc("POST /api/rounds/{id}/refund", handlers.Rounds.Refund)
		mux.HandleFunc("POST /api/tickets/{id}/list", handlers.Tickets.List)
		mux.HandleFunc("POST /api/tickets/{id}/delist", handlers.Tickets.Delist)
		mux.HandleFunc("POST /api/tickets/{id}/buy", handlers.Tickets.Buy)
	}

	// Aggregated per-account view.
	mux.HandleFunc("GET /api/users/{account}", handlers.Users.Get)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
