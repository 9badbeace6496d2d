// Package main is the entry point for the budget tracker API server.
//
// main reads configuration from the environment, builds the logger, and
// hands everything to internal/server. All real logic lives in the imported
// packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/budget-tracker/internal/server"
)

// defaultTokenTTL is the session lifetime used when TOKEN_TTL is unset.
const defaultTokenTTL = 720 * time.Hour

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	port := 5000
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
		port = p
	}

	dbPath := "data/budget.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// No signing key, no server. Failing here beats failing on the first
	// sign-in request. Generate one with: openssl rand -hex 32
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set — the server cannot issue session tokens")
		os.Exit(1)
	}

	tokenTTL := defaultTokenTTL
	if ttlStr := os.Getenv("TOKEN_TTL"); ttlStr != "" {
		d, err := time.ParseDuration(ttlStr)
		if err != nil {
			logger.Error("invalid TOKEN_TTL value", slog.String("value", ttlStr))
			os.Exit(1)
		}
		tokenTTL = d
	}

	frontendOrigin := os.Getenv("FRONTEND_ORIGIN")
	if frontendOrigin == "" {
		frontendOrigin = "http://localhost:5173"
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")
	if googleCallbackURL == "" {
		googleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", port)
	}
	if googleClientID == "" || googleClientSecret == "" {
		logger.Warn("Google OAuth credentials not set — /auth/google will not complete")
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		JWTSecret:          jwtSecret,
		TokenTTL:           tokenTTL,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		GoogleCallbackURL:  googleCallbackURL,
		FrontendOrigin:     frontendOrigin,
		Production:         os.Getenv("ENV") == "production",
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
