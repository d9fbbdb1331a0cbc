package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentionexport/mentionexport/internal/mentions"
	"github.com/mentionexport/mentionexport/internal/tabular"
	"github.com/mentionexport/mentionexport/internal/timerange"
)

// PageSize is the number of records requested per upstream page.
const PageSize = 5000

// recordTimeout bounds how long persisting and publishing a finished run may take.
const recordTimeout = 5 * time.Second

// Publisher announces finished runs.
type Publisher interface {
	PublishRun(ctx context.Context, run *Run) error
}

// ServiceConfig holds configuration for the export service.
type ServiceConfig struct {
	// Source provides upstream pages.
	Source mentions.Source

	// QueryName is the upstream query every export runs.
	QueryName string

	// DefaultFormat is used when a request names no format (default: csv).
	DefaultFormat tabular.Format

	// TempDir is where spreadsheet exports are staged (default: OS temp dir).
	TempDir string

	// Repository stores the run log. Optional.
	Repository Repository

	// Publisher announces finished runs. Optional.
	Publisher Publisher

	// Metrics records run metrics. Optional.
	Metrics *Metrics

	// Logger for service operations.
	Logger zerolog.Logger

	// Tracer for export spans (default: global tracer provider).
	Tracer trace.Tracer
}

// Service prepares and runs mention exports.
type Service struct {
	source        mentions.Source
	queryName     string
	defaultFormat tabular.Format
	tempDir       string
	repo          Repository
	publisher     Publisher
	metrics       *Metrics
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewService creates a new export service.
func NewService(cfg ServiceConfig) *Service {
	defaultFormat := cfg.DefaultFormat
	if defaultFormat == "" {
		defaultFormat = tabular.FormatCSV
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &Service{
		source:        cfg.Source,
		queryName:     cfg.QueryName,
		defaultFormat: defaultFormat,
		tempDir:       cfg.TempDir,
		repo:          cfg.Repository,
		publisher:     cfg.Publisher,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		tracer:        tracer,
		now:           time.Now,
	}
}

// Request carries the raw caller parameters for an export. Empty strings mean
// the parameter was not supplied.
type Request struct {
	Start  string
	End    string
	Format string

	// RequestID correlates the run's log line with the HTTP request log.
	RequestID string
}

// Prepare validates a request and returns a job ready to stream. Validation
// failures wrap ErrInvalidRange or ErrUnsupportedFormat and happen before any
// upstream call.
func (s *Service) Prepare(req Request) (*Job, error) {
	rng, err := timerange.Resolve(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	format := s.defaultFormat
	if strings.TrimSpace(req.Format) != "" {
		format, err = tabular.ParseFormat(req.Format)
		if err != nil {
			return nil, err
		}
	}

	return &Job{
		ID:          uuid.NewString(),
		Range:       rng,
		Format:      format,
		Filename:    fmt.Sprintf("mentions_%s.%s", rng.Stamp(), format),
		ContentType: format.ContentType(),
		RequestID:   req.RequestID,
		svc:         s,
	}, nil
}

// Runs lists recent export runs. It returns an empty list when no repository
// is configured.
func (s *Service) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if s.repo == nil {
		return []*Run{}, nil
	}
	runs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	return runs, nil
}

// Run retrieves a single export run.
func (s *Service) Run(ctx context.Context, id string) (*Run, error) {
	if s.repo == nil {
		return nil, ErrRunNotFound
	}
	return s.repo.Get(ctx, id)
}
