// Package main is the entry point for the dodolink API server.
//
// It loads configuration, connects the Postgres pool, constructs the
// external provider clients (identity, payments) and the webhook verifier,
// wires the domain services and HTTP handlers into the core chassis, and
// serves until SIGINT/SIGTERM triggers a graceful shutdown.
//
// There are no package-level client singletons: everything is constructed
// here and injected.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dodolink/internal/api/handlers"
	"dodolink/internal/billing"
	"dodolink/internal/config"
	"dodolink/internal/core"
	"dodolink/internal/db"
	"dodolink/internal/external"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("dodolink API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Database pool.
	pool, err := newPool(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("connecting database pool: %w", err)
	}
	defer pool.Close()

	// Repositories.
	profileRepo := db.NewProfileRepo(pool, logger)
	customerRepo := db.NewCustomerRepo(pool, logger)
	subRepo := db.NewSubscriptionRepo(pool, logger)
	eventRepo := db.NewEventRepo(pool, logger)

	// External provider clients.
	identityClient := external.NewIdentityClient(
		&http.Client{Timeout: cfg.Identity.Timeout},
		external.IdentityClientConfig{
			BaseURL:        cfg.Identity.BaseURL,
			ServiceRoleKey: cfg.Identity.ServiceRoleKey.Unmask(),
			AnonKey:        cfg.Identity.AnonKey.Unmask(),
			Logger:         logger,
		},
	)
	paymentsClient := external.NewPaymentsClient(
		&http.Client{Timeout: cfg.Payments.Timeout},
		external.PaymentsClientConfig{
			BaseURL: cfg.Payments.BaseURL,
			APIKey:  cfg.Payments.APIKey.Unmask(),
			Logger:  logger,
		},
	)

	verifier, err := external.NewStandardWebhookVerifier(cfg.Payments.WebhookSecret.Unmask())
	if err != nil {
		return fmt.Errorf("constructing webhook verifier: %w", err)
	}

	// Domain services.
	linker := billing.NewCustomerLinker(paymentsClient, customerRepo, logger)
	reconciler := billing.NewReconciler(subRepo, logger)

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, &poolProbe{pool: pool})

	// HTTP handlers.
	authHandler := handlers.NewAuthHandler(identityClient, profileRepo, linker, srv.Validator, logger)
	userHandler := handlers.NewUserHandler(profileRepo, customerRepo, identityClient, logger)
	customerHandler := handlers.NewCustomerHandler(linker, srv.Validator, logger)
	productHandler := handlers.NewProductHandler(paymentsClient, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(paymentsClient, customerRepo, reconciler, logger)
	webhookHandler := handlers.NewWebhookHandler(verifier, eventRepo, reconciler, logger)

	srv.RouteRegistrars = append(srv.RouteRegistrars,
		authHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
		customerHandler.RegisterRoutes,
		productHandler.RegisterRoutes,
		subscriptionHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// poolProbe exposes the database pool to the health endpoint.
type poolProbe struct {
	pool *pgxpool.Pool
}

func (p *poolProbe) Name() string { return "database" }

func (p *poolProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
