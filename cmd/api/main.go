// Package main provides the entrypoint for the mention export API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentionexport/mentionexport/internal/api"
	"github.com/mentionexport/mentionexport/internal/api/handler"
	"github.com/mentionexport/mentionexport/internal/api/middleware"
	"github.com/mentionexport/mentionexport/internal/config"
	"github.com/mentionexport/mentionexport/internal/database"
	"github.com/mentionexport/mentionexport/internal/export"
	"github.com/mentionexport/mentionexport/internal/mentions"
	"github.com/mentionexport/mentionexport/internal/mentions/brandwatch"
	"github.com/mentionexport/mentionexport/internal/notify"
	"github.com/mentionexport/mentionexport/internal/provider/resilience"
	"github.com/mentionexport/mentionexport/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "mentionexport-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting mention export API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	exportMetrics, err := export.NewMetricsWithMeter(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize export metrics")
	}
	providerMetrics, err := resilience.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Upstream mentions source
	registry := resilience.NewRegistry()
	var source mentions.Source
	if cfg.UsesLiveAPI() {
		source = brandwatch.NewClient(brandwatch.ClientConfig{
			BaseURL:   cfg.APIURL,
			ProjectID: cfg.ProjectID,
			Token:     cfg.APIToken,
			Registry:  registry,
			Metrics:   providerMetrics,
		})
		log.Info().
			Str("api_url", cfg.APIURL).
			Str("query", cfg.QueryName).
			Msg("mentions API client initialized")
	} else {
		source = mentions.NewStaticSource()
		log.Warn().Msg("BW_API_URL not set - exports will be empty")
	}

	// Run log storage
	var (
		repo        export.Repository = export.NewInMemoryRepository()
		readyChecks []handler.DependencyCheck
	)
	if cfg.DBEnabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Str("dsn", cfg.Database.Redacted()).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgRepo := export.NewPostgresRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare export run schema")
		}
		repo = pgRepo
		readyChecks = append(readyChecks, handler.DependencyCheck{
			Name:  "database",
			Check: func(r *http.Request) error { return pool.Ping(r.Context()) },
		})
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	// Run events
	var publisher export.Publisher
	if cfg.PublishesEvents() {
		p, err := notify.NewPublisher(ctx, notify.Config{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create run event publisher")
		}
		defer func() {
			if closeErr := p.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close run event publisher")
			}
		}()
		publisher = p
		log.Info().Str("topic", cfg.PubSubTopic).Msg("run event publisher initialized")
	}

	exportService := export.NewService(export.ServiceConfig{
		Source:        source,
		QueryName:     cfg.QueryName,
		DefaultFormat: cfg.DefaultFormat,
		TempDir:       cfg.TempDir,
		Repository:    repo,
		Publisher:     publisher,
		Metrics:       exportMetrics,
		Logger:        log,
		Tracer:        tp.Tracer,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       httpMetrics,
		ExportService: exportService,
		Registry:      registry,
		ReadyChecks:   readyChecks,
		WriteTimeout:  cfg.WriteTimeout,
		RequireTLS:    cfg.RequireTLS,
	})

	// WriteTimeout stays unset: downloads extend their own deadline per chunk.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// In-flight downloads get the write timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
