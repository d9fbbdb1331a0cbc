package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns a middleware that logs one line per HTTP request once the
// handler returns, which for downloads is after the last chunk. A download
// torn down mid-stream is still logged, flagged as aborted.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusWriter(w)

			defer func() {
				rec := recover()

				spanCtx := trace.SpanContextFromContext(r.Context())
				traceID, spanID := "", ""
				if spanCtx.IsValid() {
					traceID = spanCtx.TraceID().String()
					spanID = spanCtx.SpanID().String()
				}

				event := log.Info()
				if wrapped.statusCode >= http.StatusInternalServerError {
					event = log.Warn()
				}
				event.
					Str("request_id", GetRequestID(r.Context())).
					Str("trace_id", traceID).
					Str("span_id", spanID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", wrapped.statusCode).
					Int64("bytes", wrapped.written).
					Dur("duration", time.Since(start)).
					Str("remote_addr", r.RemoteAddr).
					Str("user_agent", r.UserAgent()).
					Bool("aborted", rec != nil).
					Msg("request completed")

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
