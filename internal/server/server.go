// Package server is the composition root: it builds every dependency from a
// config.Config, mounts the routes and runs the HTTP server together with
// the scheduled jobs.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → sqlite.DB (users + accounts), github.Client, auth.TokenService
//	  → SyncService / AuthService / ProfileService
//	  → AuthHandler / UserHandler / HealthHandler
//	  → chi routes
//
// Handlers only see services; services only see repository interfaces.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/evergreeners/internal/auth"
	"github.com/sakif/evergreeners/internal/config"
	"github.com/sakif/evergreeners/internal/github"
	"github.com/sakif/evergreeners/internal/handler"
	"github.com/sakif/evergreeners/internal/metrics"
	"github.com/sakif/evergreeners/internal/middleware"
	sqliteRepo "github.com/sakif/evergreeners/internal/repository/sqlite"
	"github.com/sakif/evergreeners/internal/scheduler"
	"github.com/sakif/evergreeners/internal/service"
)

// shutdownTimeout is how long in-flight requests and a running batch get
// after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server owns the database and the scheduler; both are released when Start
// returns.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	scheduler *scheduler.Scheduler
}

// New opens the database and wires everything. Nothing runs until Start.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
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

	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setup builds the services and mounts the routes.
//
// ROUTES:
//
//	GET  /                                 {"hello":"world"}
//	GET  /health                           database ping
//	GET  /metrics                          Prometheus (basic auth when configured)
//	POST /api/auth/sign-up/email
//	POST /api/auth/sign-in/email
//	POST /api/auth/sign-out
//	GET  /api/auth/get-session             optional auth
//	GET  /api/auth/github/login            only with GitHub OAuth configured
//	GET  /api/auth/github/callback         optional auth (link vs sign in)
//	GET  /api/user/profile                 ┐
//	PUT  /api/user/profile                 │ require auth
//	GET  /api/user/analytics               │
//	POST /api/user/sync-github             │ + per-user rate limit
//	POST /api/user/sync-github-cached      ┘
func (s *Server) setup() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	ghClient := github.NewClient(cfg.GitHubAPIURL)

	var provider *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		provider = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL())
	} else {
		s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub sign-in is disabled")
	}

	syncService := service.NewSyncService(s.db, s.db, ghClient, m, s.logger)
	authService := service.NewAuthService(s.db, s.db, tokens, auth.NewPasswordService(), ghClient, s.logger)
	profileService := service.NewProfileService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, syncService, provider, tokens, handler.AuthConfig{
		FrontendURL:   cfg.FrontendURL,
		SecureCookies: cfg.CookieSecure,
	}, s.logger)
	userHandler := handler.NewUserHandler(syncService, profileService, cfg.SyncCacheWindow, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	batch := scheduler.NewBatch(s.db, syncService, cfg.SyncDelay, s.logger)
	s.scheduler, err = scheduler.New(scheduler.Config{
		SyncSchedule:    cfg.SyncSchedule,
		CleanupSchedule: cfg.CleanupSchedule,
	}, batch, s.logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.SyncRatePerMinute, cfg.SyncRateBurst)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(m))
	// CORS must see preflight requests before routing rejects the OPTIONS method.
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))

	s.router.Get("/", healthHandler.HandleRoot)
	s.router.Get("/health", healthHandler.HandleHealth)

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	if cfg.MetricsUser != "" {
		s.router.With(chimiddleware.BasicAuth("metrics", map[string]string{
			cfg.MetricsUser: cfg.MetricsPass,
		})).Handle("/metrics", metricsHandler)
	} else {
		s.router.Handle("/metrics", metricsHandler)
	}

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-up/email", authHandler.HandleSignUp)
		r.Post("/sign-in/email", authHandler.HandleSignIn)
		r.Post("/sign-out", authHandler.HandleSignOut)
		r.With(auth.OptionalAuth(tokens)).Get("/get-session", authHandler.HandleGetSession)

		if provider != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.With(auth.OptionalAuth(tokens)).Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	s.router.Route("/api/user", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/profile", userHandler.HandleGetProfile)
		r.Put("/profile", userHandler.HandleUpdateProfile)
		r.Get("/analytics", userHandler.HandleAnalytics)

		// Limiter sits behind RequireAuth so buckets are keyed by user.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Post("/sync-github", userHandler.HandleSyncGitHub)
			r.Post("/sync-github-cached", userHandler.HandleSyncGitHubCached)
		})
	})

	return nil
}

// Start serves HTTP and runs the scheduled jobs until SIGINT/SIGTERM.
//
// SHUTDOWN ORDER:
//  1. Stop accepting connections and drain in-flight requests
//  2. Stop the scheduler and wait for a running batch (it is cancelled)
//  3. Close the database
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// A sync makes two GitHub calls inside one request.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	s.scheduler.Start()

	select {
	case err := <-serverErrors:
		<-s.scheduler.Stop().Done()
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		select {
		case <-s.scheduler.Stop().Done():
		case <-ctx.Done():
			s.logger.Warn("scheduled job still running at shutdown deadline")
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
