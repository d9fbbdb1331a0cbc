// Package api provides the HTTP API of the mention export service.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mentionexport/mentionexport/internal/api/handler"
	"github.com/mentionexport/mentionexport/internal/api/middleware"
	"github.com/mentionexport/mentionexport/internal/export"
	"github.com/mentionexport/mentionexport/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	ServiceName   string
	Metrics       *middleware.Metrics
	ExportService *export.Service
	Registry      *resilience.Registry
	ReadyChecks   []handler.DependencyCheck
	WriteTimeout  time.Duration
	RequireTLS    bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "mentionexport-api"
	}

	// Global middleware - order matters
	r.Use(middleware.CORS)                 // CORS headers on every response, preflight answered here
	r.Use(middleware.RequestID)            // Generate/propagate request ID
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery, stream aborts pass through
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.ReadyChecks...)
	exportHandler := handler.NewExportHandler(cfg.ExportService, cfg.WriteTimeout, cfg.Logger)

	r.Get("/", opsHandler.Root)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	r.Get("/download", exportHandler.Download)
	r.Post("/download", exportHandler.Download)
	r.Options("/download", exportHandler.Download)

	r.Route("/exports", func(r chi.Router) {
		r.Get("/", exportHandler.ListExports)
		r.Get("/{exportId}", exportHandler.GetExport)
	})

	return r
}
