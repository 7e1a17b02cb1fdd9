package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
	"github.com/solvedrelay/solvedrelay/internal/server/handlers"
)

// SolvedPath is the rate-limited relay route.
const SolvedPath = "/api/gfg/solved"

func (s *Server) registerRoutes() {
	s.router.Get("/", handlers.RootHandler)

	s.registerSolvedRoute()

	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminEndpoint()
}

func (s *Server) registerSolvedRoute() {
	if s.opts.Fetcher == nil || s.opts.Limiter == nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Solved route not mounted: fetcher or limiter missing")
		}
		return
	}

	gate := ratelimit.Gate(ratelimit.GateOptions{
		Limiter:  s.opts.Limiter,
		OnReject: handlers.RateLimitExceeded(s.opts.WindowMinutes),
		Stats:    s.opts.Stats,
	})
	s.router.With(gate).Post(SolvedPath, handlers.NewSolvedHandler(s.opts.Fetcher).ServeHTTP)
}

// registerAdminEndpoint mounts the gofulmen signal endpoint behind a bearer token.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
