// Package http exposes the connection service over a JSON API.
//
//	@title						Sercha Connect API
//	@version					1.0
//	@description				OAuth connection lifecycle for external platforms.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// callbackRedirect, when set, receives the browser after the OAuth
	// callback instead of a JSON body.
	callbackRedirect string

	// Services
	connections driving.ConnectionService
	auth        driven.AuthAdapter

	// Infrastructure
	db    Pinger // Connection store health check
	cache Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// CallbackRedirect is a frontend URL that receives ?platform=&status=
	// after the OAuth callback. Empty returns JSON.
	CallbackRedirect string

	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	connections driving.ConnectionService,
	auth driven.AuthAdapter,
	db Pinger,
	cache Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		logger:           logger,
		callbackRedirect: cfg.CallbackRedirect,
		connections:      connections,
		auth:             auth,
		db:               db,
		cache:            cache,
	}

	s.setupRoutes()

	var h http.Handler = s.router
	h = NewLoggingMiddleware(logger).Handler(h)
	if len(cfg.CORSOrigins) > 0 {
		h = NewCORSMiddleware(cfg.CORSOrigins).Handler(h)
	}
	h = NewRecoveryMiddleware(logger).Handler(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}
	serviceOnly := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(authMiddleware.RequireRole(domain.RoleService)(h))
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Provider catalogue (public)
	s.router.HandleFunc("GET /api/v1/providers", s.handleListProviders)

	// Connection endpoints (authenticated user)
	s.router.Handle("GET /api/v1/connections", authed(s.handleGetConnections))
	s.router.Handle("POST /api/v1/connections/{platform}/authorize", authed(s.handleAuthorize))
	s.router.Handle("DELETE /api/v1/connections/{platform}", authed(s.handleDisconnect))

	// Internal consumers (service role)
	s.router.Handle("POST /api/v1/connections/{platform}/token", serviceOnly(s.handleBorrowToken))
	s.router.Handle("POST /api/v1/connections/{platform}/sync", serviceOnly(s.handleRecordSync))

	// Callback is public - receives redirects from OAuth providers
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)
}

// Handler returns the fully wrapped handler (for tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
