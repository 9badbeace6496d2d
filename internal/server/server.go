// Package server wires the application together: database, services,
// handlers, middleware, and routes, plus startup and graceful shutdown.
//
// This is the composition root — every dependency is constructed and
// connected here, so nothing else in the codebase reaches for globals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/budget-tracker/internal/auth"
	"github.com/sakif/budget-tracker/internal/handler"
	"github.com/sakif/budget-tracker/internal/middleware"
	sqliteRepo "github.com/sakif/budget-tracker/internal/repository/sqlite"
	"github.com/sakif/budget-tracker/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. Empty or short secrets are rejected
	// in New — a server that cannot sign tokens must not start.
	JWTSecret string
	// TokenTTL is the single expiry horizon for tokens and their cookie.
	TokenTTL time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// FrontendOrigin is the SPA origin, used for CORS and OAuth redirects.
	FrontendOrigin string
	// Production turns on the Secure cookie attribute.
	Production bool
}

// Server owns the router and the resources that need closing on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB → AuthService (with TokenService + PasswordService) → AuthHandler
//
// Fails fast on a bad database path or an unusable signing secret.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	authService := service.NewAuthService(db, tokens, auth.NewPasswordService(), logger)
	google := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	authHandler := handler.NewAuthHandler(
		authService,
		google,
		logger,
		cfg.FrontendOrigin,
		tokens.TTL(),
		cfg.Production,
	)

	s.setupRoutes(authHandler, tokens)

	return s, nil
}

// setupRoutes configures middleware and the route table.
//
//	POST /sign-up               local registration
//	POST /sign-in               local sign-in
//	GET  /auth/google           redirect to Google consent
//	GET  /auth/google/callback  OAuth callback, redirects to the frontend
//	POST /auth/logout           clear the session cookie
//	GET  /api/me                current account (protected)
//	GET  /health                liveness probe
func (s *Server) setupRoutes(authHandler *handler.AuthHandler, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	// Bound every request, store round trips included, so a wedged
	// database can't hold connections open indefinitely.
	s.router.Use(chimiddleware.Timeout(15 * time.Second))
	s.router.Use(middleware.Logger(s.logger))

	// The SPA runs on another origin and sends the session cookie, so CORS
	// must both allow that origin and permit credentials.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Post("/sign-up", authHandler.HandleSignUp)
	s.router.Post("/sign-in", authHandler.HandleSignIn)

	s.router.Get("/auth/google", authHandler.HandleGoogleLogin)
	s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("frontend", s.config.FrontendOrigin),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
