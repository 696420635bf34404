// Package core provides the API chassis for the dodolink service.
// It creates a chi router and enforces cross-cutting concerns -- request
// correlation, logging, CORS, panic recovery, and error formatting -- before
// requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dodolink/internal/config"
)

// Server encapsulates the router and cross-cutting dependencies for the
// dodolink API, allowing injection during testing and distinct configuration
// for different environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// RouteRegistrars are populated by the application entry point (main.go)
	// and mounted under /api by MountRoutes. This indirection avoids import
	// cycles between core and handler packages.
	RouteRegistrars []func(chi.Router)

	// HealthProbes are checked by GET /health; populated by main.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the router and prepares the server for route mounting.
// The caller is responsible for appending RouteRegistrars and calling
// MountRoutes afterwards; the separation allows tests to customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
