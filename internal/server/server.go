// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This package is the wiring layer: it connects handlers, middleware, and
// routes, and owns start/stop. The full dependency chain is assembled in
// one place (the composition root) rather than scattered across the
// codebase:
//
//	sqlite.DB → services (account, backfill, template, wallet) → handlers
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nobody reaches past its
// neighbour.
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
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/RahulSriwastaw/backend/internal/handler"
	"github.com/RahulSriwastaw/backend/internal/identity"
	"github.com/RahulSriwastaw/backend/internal/metrics"
	"github.com/RahulSriwastaw/backend/internal/middleware"
	"github.com/RahulSriwastaw/backend/internal/provider"
	sqliteRepo "github.com/RahulSriwastaw/backend/internal/repository/sqlite"
	"github.com/RahulSriwastaw/backend/internal/service"
)

// Config holds server configuration, loaded from the environment by
// cmd/server.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens (HS256).
	JWTSecret string

	// Provider token verification.
	ProviderIssuer   string
	ProviderAudience string
	ProviderCertsURL string

	// Provider admin API (directory listing for backfill, revocation
	// watermarks). Optional: when AdminBaseURL is empty, sync-all is
	// disabled and tokens are not checked for revocation.
	ProviderAdminBaseURL string
	ProviderClientID     string
	ProviderClientSecret string
	ProviderTokenURL     string

	// TemplateFallbackFile is served when the template store is down.
	// Optional.
	TemplateFallbackFile string

	// BackfillPagesPerSecond throttles directory page pulls; <= 0
	// disables throttling.
	BackfillPagesPerSecond float64
}

// Server owns the router, the database connection, and the metrics
// registry. The database is closed during graceful shutdown to flush the
// WAL and release the file lock.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server and wires the entire dependency chain.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the services and handlers,
// and maps every route.
//
// Middleware executes in the order it is added:
//  1. RequestID — assigns a unique ID to each request (tracing)
//  2. RealIP   — extracts the real client IP from proxy headers
//  3. Logger   — logs each request with timing info
//  4. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tokens, err := identity.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	certs := identity.NewCertSource(s.config.ProviderCertsURL, nil)
	verifier, err := identity.NewVerifier(certs, s.config.ProviderIssuer, s.config.ProviderAudience)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}

	// The admin client is optional. Without it the verifier skips
	// revocation checks and sync-all has no directory to walk.
	var adminClient *provider.Client
	if s.config.ProviderAdminBaseURL != "" {
		creds := &clientcredentials.Config{
			ClientID:     s.config.ProviderClientID,
			ClientSecret: s.config.ProviderClientSecret,
			TokenURL:     s.config.ProviderTokenURL,
		}
		adminClient = provider.NewClient(s.config.ProviderAdminBaseURL, creds)
		verifier = verifier.WithRevocationCheck(adminClient)
	}

	accountService := service.NewAccountService(s.db, identity.NewPasswordService(), tokens, collector, s.logger)
	templateService := service.NewTemplateService(s.db, s.config.TemplateFallbackFile, s.logger)
	walletService := service.NewWalletService(s.db)

	var backfillService *service.BackfillService
	if adminClient != nil {
		backfillService = service.NewBackfillService(
			adminClient, accountService, collector, s.config.BackfillPagesPerSecond, s.logger)
	}

	authHandler := handler.NewAuthHandler(verifier, accountService, backfillService, s.logger)
	templateHandler := handler.NewTemplateHandler(templateService, s.logger)
	walletHandler := handler.NewWalletHandler(walletService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db)

	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// The federated routes carry their own credential (the
			// provider ID token in the body), so no session is needed.
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/federated-login", authHandler.HandleFederatedLogin)
			r.Post("/sync", authHandler.HandleSync)

			r.Group(func(r chi.Router) {
				r.Use(identity.RequireAuth(tokens))
				r.Get("/me", authHandler.HandleMe)
				if backfillService != nil {
					r.Post("/sync-all", authHandler.HandleSyncAll)
				}
			})
		})

		r.Get("/templates", templateHandler.HandleList)
		r.Get("/templates/{id}", templateHandler.HandleGet)

		r.Route("/wallet", func(r chi.Router) {
			r.Use(identity.RequireAuth(tokens))
			r.Get("/balance", walletHandler.HandleBalance)
			r.Get("/transactions", walletHandler.HandleTransactions)
			r.Post("/add-points", walletHandler.HandleAddPoints)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown:
//  1. Stop accepting new connections on SIGINT/SIGTERM
//  2. Wait up to 30s for in-flight requests to finish
//  3. Close the database connection
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
