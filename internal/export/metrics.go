package export

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mentionexport/mentionexport/internal/export"

// Metrics holds the OpenTelemetry instruments for export runs.
type Metrics struct {
	runs     metric.Int64Counter
	pages    metric.Int64Counter
	rows     metric.Int64Counter
	bytes    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates export instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsWithMeter creates export instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter(
		"export.runs",
		metric.WithDescription("Number of finished export runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	pages, err := meter.Int64Counter(
		"export.pages",
		metric.WithDescription("Upstream pages consumed by exports"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"export.rows",
		metric.WithDescription("Rows written by exports"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	bytes, err := meter.Int64Counter(
		"export.bytes",
		metric.WithDescription("Bytes streamed to clients by exports"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"export.duration",
		metric.WithDescription("Duration of export runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runs:     runs,
		pages:    pages,
		rows:     rows,
		bytes:    bytes,
		duration: duration,
	}, nil
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, run *Run) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("export.format", string(run.Format)),
		attribute.String("export.status", string(run.Status)),
	)

	m.runs.Add(ctx, 1, attrs)
	m.pages.Add(ctx, int64(run.Pages), attrs)
	m.rows.Add(ctx, int64(run.Rows), attrs)
	m.bytes.Add(ctx, run.Bytes, attrs)
	m.duration.Record(ctx, run.Duration().Seconds(), attrs)
}
