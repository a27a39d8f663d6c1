// Package main is the entry point for the backend server.
//
// The main package stays minimal — its job is to:
//  1. Read configuration from environment variables
//  2. Create the logger
//  3. Hand both to internal/server and start
//
// All actual logic lives in the imported packages. The cmd/ directory is
// the Go convention for executable entry points; this project has two
// (cmd/server and cmd/bootstrap), each with its own main.go.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RahulSriwastaw/backend/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the data directory exists (like `mkdir -p`).
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads all configuration from environment variables.
//
// Required:
//
//	JWT_SECRET          — signs session tokens; generate with `openssl rand -hex 32`
//	PROVIDER_ISSUER     — expected `iss` of provider ID tokens
//	PROVIDER_AUDIENCE   — expected `aud` of provider ID tokens
//	PROVIDER_CERTS_URL  — URL of the provider's signing cert set
//
// Optional:
//
//	PORT                    (default 8080)
//	DB_PATH                 (default data/backend.db)
//	PROVIDER_ADMIN_URL      — admin API base; enables sync-all and revocation checks
//	PROVIDER_CLIENT_ID, PROVIDER_CLIENT_SECRET, PROVIDER_TOKEN_URL
//	TEMPLATE_FALLBACK_FILE  — JSON catalog served when the store is down
//	BACKFILL_PAGES_PER_SECOND (default 2)
func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:                   8080,
		DBPath:                 "data/backend.db",
		JWTSecret:              os.Getenv("JWT_SECRET"),
		ProviderIssuer:         os.Getenv("PROVIDER_ISSUER"),
		ProviderAudience:       os.Getenv("PROVIDER_AUDIENCE"),
		ProviderCertsURL:       os.Getenv("PROVIDER_CERTS_URL"),
		ProviderAdminBaseURL:   os.Getenv("PROVIDER_ADMIN_URL"),
		ProviderClientID:       os.Getenv("PROVIDER_CLIENT_ID"),
		ProviderClientSecret:   os.Getenv("PROVIDER_CLIENT_SECRET"),
		ProviderTokenURL:       os.Getenv("PROVIDER_TOKEN_URL"),
		TemplateFallbackFile:   os.Getenv("TEMPLATE_FALLBACK_FILE"),
		BackfillPagesPerSecond: 2,
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, err
		}
		cfg.Port = port
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if rateStr := os.Getenv("BACKFILL_PAGES_PER_SECOND"); rateStr != "" {
		pages, err := strconv.ParseFloat(rateStr, 64)
		if err != nil {
			return cfg, err
		}
		cfg.BackfillPagesPerSecond = pages
	}

	return cfg, nil
}
