// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentionexport/mentionexport/internal/database"
	"github.com/mentionexport/mentionexport/internal/tabular"
)

// Config is the full service configuration.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level
	RequireTLS  bool

	// Upstream mentions API.
	QueryName string
	APIURL    string
	APIToken  string
	ProjectID string

	// Export behavior.
	DefaultFormat tabular.Format
	TempDir       string
	WriteTimeout  time.Duration

	// Telemetry.
	OTelEnabled  bool
	OTLPEndpoint string

	// Run log storage.
	DBEnabled bool
	Database  database.Config

	// Run events.
	PubSubProjectID string
	PubSubTopic     string
}

// FromEnv reads the configuration from the environment and validates it.
func FromEnv() (Config, error) {
	var errs []error

	format, err := tabular.ParseFormat(getEnvOrDefault("EXPORT_FORMAT", string(tabular.FormatCSV)))
	if err != nil {
		errs = append(errs, fmt.Errorf("EXPORT_FORMAT: %w", err))
	}

	writeTimeout, err := time.ParseDuration(getEnvOrDefault("EXPORT_WRITE_TIMEOUT", "60s"))
	if err != nil || writeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("EXPORT_WRITE_TIMEOUT: must be a positive duration, got %q", os.Getenv("EXPORT_WRITE_TIMEOUT")))
	}

	level, err := zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = getEnvOrDefault("PORT", "8080")
	}
	if _, err := strconv.Atoi(port); err != nil {
		errs = append(errs, fmt.Errorf("APP_PORT: %q is not a port number", port))
	}

	cfg := Config{
		Port:            port,
		Environment:     getEnvOrDefault("APP_ENV", "development"),
		LogLevel:        level,
		RequireTLS:      os.Getenv("REQUIRE_TLS") == "true",
		QueryName:       os.Getenv("BW_QUERY_NAME"),
		APIURL:          os.Getenv("BW_API_URL"),
		APIToken:        os.Getenv("BW_API_TOKEN"),
		ProjectID:       os.Getenv("BW_PROJECT_ID"),
		DefaultFormat:   format,
		TempDir:         getEnvOrDefault("EXPORT_TEMP_DIR", os.TempDir()),
		WriteTimeout:    writeTimeout,
		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		DBEnabled:       os.Getenv("DB_ENABLED") == "true",
		Database:        database.ConfigFromEnv(),
		PubSubProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:     os.Getenv("PUBSUB_TOPIC"),
	}

	if cfg.PubSubTopic != "" && cfg.PubSubProjectID == "" {
		errs = append(errs, errors.New("PUBSUB_PROJECT_ID: required when PUBSUB_TOPIC is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UsesLiveAPI reports whether an upstream API URL is configured. Without one
// the service serves exports from an empty static source.
func (c Config) UsesLiveAPI() bool {
	return c.APIURL != ""
}

// PublishesEvents reports whether run events go to Pub/Sub.
func (c Config) PublishesEvents() bool {
	return c.PubSubTopic != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
