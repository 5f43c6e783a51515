package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/observability"
	"github.com/namelens/entryguard/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminEndpoint()
	s.registerValidation()
}

// registerValidation mounts GET /{repo}/{pr}, with or without a trailing
// slash. Static routes above take precedence.
func (s *Server) registerValidation() {
	if s.runner == nil {
		return
	}

	validate := &handlers.ValidateHandler{
		Runner:      s.runner,
		Directories: s.directories,
		Logger:      observability.ServerLogger,
	}
	s.router.Method(http.MethodGet, "/{repo}/{pr}", validate)
	s.router.Method(http.MethodGet, "/{repo}/{pr}/", validate)
}

// registerAdminEndpoint registers POST /admin/signal when an admin token is set.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token configured)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.adminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil, // global manager
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
