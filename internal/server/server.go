// Package server provides the HTTP surface: the Monzo login flow, the
// balances endpoint, and health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/potwatch/potwatch/internal/accounts"
	"github.com/potwatch/potwatch/internal/auth"
	"github.com/potwatch/potwatch/internal/balances"
	"github.com/potwatch/potwatch/internal/config"
	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/token"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second
)

// Server wires the login flow, account resolution and balance reporting
// behind one HTTP listener.
type Server struct {
	config   *config.Config
	auth     *auth.Service
	tokens   *token.Manager
	accounts *accounts.Resolver
	balances *balances.Reporter
}

// NewServer creates a new HTTP server instance with the provided configuration
func NewServer(cfg *config.Config, authService *auth.Service, tokens *token.Manager, resolver *accounts.Resolver, reporter *balances.Reporter) *Server {
	if cfg == nil {
		logger.Fatal("Config cannot be nil")
	}

	return &Server{
		config:   cfg,
		auth:     authService,
		tokens:   tokens,
		accounts: resolver,
		balances: reporter,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/auth/monzo", LoggingMiddleware(http.HandlerFunc(s.handleAuthStart)))
	mux.Handle("/auth/monzo/callback", LoggingMiddleware(http.HandlerFunc(s.handleAuthCallback)))
	mux.Handle("/balances", LoggingMiddleware(CORSMiddleware(s.config.Balances.AllowOrigins, http.HandlerFunc(s.handleBalances))))
	mux.Handle("/health", LoggingMiddleware(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/", LoggingMiddleware(http.HandlerFunc(s.handleFallback)))
	return mux
}

// Start runs the listener until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("version", config.Version()),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// Module provides the HTTP server dependencies
var Module = fx.Module("http_server",
	fx.Provide(
		NewServer,
	),
)
