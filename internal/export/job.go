package export

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentionexport/mentionexport/internal/flatten"
	"github.com/mentionexport/mentionexport/internal/mentions"
	"github.com/mentionexport/mentionexport/internal/tabular"
	"github.com/mentionexport/mentionexport/internal/timerange"
)

// ErrJobConsumed is yielded when a job's stream is iterated a second time.
var ErrJobConsumed = errors.New("export job already consumed")

// Job is a validated export ready to stream.
type Job struct {
	ID          string
	Range       timerange.Range
	Format      tabular.Format
	Filename    string
	ContentType string
	RequestID   string

	svc     *Service
	started atomic.Bool
}

// Chunks drives the upstream pagination and yields encoded output as it is
// produced. CSV output yields one chunk per non-empty page; spreadsheet output
// yields nothing until the source is exhausted and then the staged workbook.
//
// Iteration stops after the first error, which is an *UpstreamError or a
// *SinkError. Stopping early releases the upstream request and any staged
// files. The run is recorded once the sequence ends.
func (j *Job) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if !j.started.CompareAndSwap(false, true) {
			yield(nil, ErrJobConsumed)
			return
		}

		s := j.svc
		ctx, span := s.tracer.Start(ctx, "export.job", trace.WithAttributes(
			attribute.String("export.id", j.ID),
			attribute.String("export.format", string(j.Format)),
			attribute.String("export.start", j.Range.StartISO()),
			attribute.String("export.end", j.Range.EndISO()),
		))

		run := &Run{
			ID:        j.ID,
			Format:    j.Format,
			Filename:  j.Filename,
			QueryName: s.queryName,
			Start:     j.Range.Start,
			End:       j.Range.End,
			Status:    StatusRunning,
			StartedAt: s.now(),
		}
		s.save(ctx, run)

		var (
			failure error
			stopped bool
		)
		defer func() {
			s.finish(ctx, span, j.RequestID, run, failure, stopped)
		}()

		sink, err := tabular.New(j.Format, tabular.Options{TempDir: s.tempDir})
		if err != nil {
			failure = &SinkError{Format: j.Format, Err: err}
			yield(nil, failure)
			return
		}
		defer sink.Close()

		emit := func(chunk []byte) bool {
			if len(chunk) == 0 {
				return true
			}
			run.Bytes += int64(len(chunk))
			if !yield(chunk, nil) {
				stopped = true
				return false
			}
			return true
		}

		query := mentions.Query{
			Name:     s.queryName,
			Start:    j.Range.StartISO(),
			End:      j.Range.EndISO(),
			PageSize: PageSize,
		}

		var schema *flatten.Schema
		n := 0
		for page, err := range s.source.Pages(ctx, query) {
			n++
			if err != nil {
				failure = &UpstreamError{Page: n, Err: err}
				yield(nil, failure)
				return
			}
			run.Pages++
			if len(page) == 0 {
				continue
			}

			includeHeader := schema == nil
			var rows iter.Seq[flatten.Row]
			rows, schema = flatten.Flatten(page, schema)

			chunk, err := sink.Write(schema, countRows(rows, &run.Rows), includeHeader)
			if err != nil {
				failure = &SinkError{Format: j.Format, Err: err}
				yield(nil, failure)
				return
			}
			if !emit(chunk) {
				return
			}
		}

		for chunk, err := range sink.Finalize(ctx) {
			if err != nil {
				failure = &SinkError{Format: j.Format, Err: err}
				yield(nil, failure)
				return
			}
			if !emit(chunk) {
				return
			}
		}
	}
}

func countRows(rows iter.Seq[flatten.Row], n *int) iter.Seq[flatten.Row] {
	return func(yield func(flatten.Row) bool) {
		for row := range rows {
			*n++
			if !yield(row) {
				return
			}
		}
	}
}

// finish settles the run status and reports it to the log, metrics, the run
// repository and the publisher.
func (s *Service) finish(ctx context.Context, span trace.Span, requestID string, run *Run, failure error, stopped bool) {
	defer span.End()

	finished := s.now()
	run.FinishedAt = &finished

	switch {
	case failure != nil && (errors.Is(failure, context.Canceled) || ctx.Err() != nil):
		run.Status = StatusCanceled
		run.Error = failure.Error()
	case failure != nil:
		run.Status = StatusFailed
		run.Error = failure.Error()
	case stopped:
		run.Status = StatusCanceled
		run.Error = "client stopped reading"
	default:
		run.Status = StatusCompleted
	}

	span.SetAttributes(
		attribute.String("export.status", string(run.Status)),
		attribute.Int("export.pages", run.Pages),
		attribute.Int("export.rows", run.Rows),
		attribute.Int64("export.bytes", run.Bytes),
	)
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	}

	event := s.logger.Info()
	if run.Status == StatusFailed {
		event = s.logger.Error().Err(failure)
	} else if run.Status == StatusCanceled {
		event = s.logger.Warn().Str("reason", run.Error)
	}
	event.
		Str("request_id", requestID).
		Str("run_id", run.ID).
		Str("format", string(run.Format)).
		Str("filename", run.Filename).
		Int("pages", run.Pages).
		Int("rows", run.Rows).
		Int64("bytes", run.Bytes).
		Dur("duration", run.Duration()).
		Str("status", string(run.Status)).
		Msg("export finished")

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	s.metrics.RecordRun(recordCtx, run)
	s.save(recordCtx, run)

	if s.publisher != nil {
		if err := s.publisher.PublishRun(recordCtx, run); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to publish export run")
		}
	}
}

func (s *Service) save(ctx context.Context, run *Run) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("failed to save export run")
	}
}
