// Package server exposes the decision pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbot-io/arbot/internal/server/handler"
	"github.com/arbot-io/arbot/internal/server/middleware"
	"github.com/arbot-io/arbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
	Trades        *handler.TradeHandler
	Performance   *handler.PerformanceHandler
	Variants      *handler.VariantHandler
	Allocation    *handler.AllocationHandler
}

// Server is the headless HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (CORS, logging, auth) applied.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check carries no auth-sensitive data.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/opportunities/recent", handlers.Opportunities.ListRecent)

	mux.HandleFunc("POST /api/trade", handlers.Trades.Trigger)
	mux.HandleFunc("GET /api/trades", handlers.Trades.List)

	mux.HandleFunc("GET /api/performance", handlers.Performance.Summary)
	mux.HandleFunc("GET /api/balances", handlers.Performance.Balances)

	mux.HandleFunc("GET /api/variants", handlers.Variants.Summary)
	mux.HandleFunc("POST /api/variants/rotate", handlers.Variants.Rotate)

	mux.HandleFunc("GET /api/allocation", handlers.Allocation.Summary)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start listens for requests and blocks until shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
