// Package api provides the HTTP API server for the check-in service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fieldops/tech-checkin/internal/api/handlers"
	"github.com/fieldops/tech-checkin/internal/api/health"
	"github.com/fieldops/tech-checkin/internal/api/middleware"
	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/store"
	"github.com/fieldops/tech-checkin/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	runner        *checks.Runner
	scheduler     *checks.Scheduler
	linker        *checks.FormLinker
	texter        checks.Texter
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, runner *checks.Runner, scheduler *checks.Scheduler, linker *checks.FormLinker, texter checks.Texter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     st,
		runner:    runner,
		scheduler: scheduler,
		linker:    linker,
		texter:    texter,
		config:    cfg,
		logger:    logger,
	}

	// Without a database the notification log is a no-op and there is
	// nothing to ping; health should report it as not configured rather
	// than connected.
	var pinger health.Pinger
	if cfg.DatabaseDSN != "" {
		pinger = st
	}
	s.healthChecker = health.NewChecker(pinger, Version)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes. All routes
// live under the configured root path, mirroring the ASGI --root-path the
// service was originally deployed with.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	if s.config.RootPath == "" || s.config.RootPath == "/" {
		s.registerRoutes(r)
	} else {
		r.Route(s.config.RootPath, func(r chi.Router) {
			s.registerRoutes(r)
		})
	}

	s.router = r
}

func (s *Server) registerRoutes(r chi.Router) {
	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	checkinHandler := handlers.NewCheckinHandler(s.runner, s.linker, s.texter, s.store.Notifications(), s.logger)
	sweepHandler := handlers.NewSweepHandler(s.runner, s.scheduler, s.store.Notifications(), s.logger)

	// Everything else requires the service API key.
	r.Group(func(r chi.Router) {
		auth := middleware.NewAPIKeyAuth(s.config.APIKeyHeader, s.config.APIKey, s.logger)
		r.Use(auth.Authenticate)

		r.Post("/formsubmit", checkinHandler.FormSubmit)
		r.Post("/24hrtext", checkinHandler.Text24Hour)
		r.Post("/1hrtext", checkinHandler.Text1Hour)

		r.Route("/checks", func(r chi.Router) {
			r.Post("/24hour", sweepHandler.Run24Hour)
			r.Post("/1hour", sweepHandler.Run1Hour)
		})

		r.Get("/notifications", sweepHandler.ListNotifications)
	})
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr, "root_path", s.config.RootPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Name implements shutdown.Component.
func (s *Server) Name() string { return "api-server" }

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
