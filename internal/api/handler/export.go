// Package handler provides HTTP handlers for the export API.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mentionexport/mentionexport/internal/api/middleware"
	"github.com/mentionexport/mentionexport/internal/api/models"
	"github.com/mentionexport/mentionexport/internal/api/response"
	"github.com/mentionexport/mentionexport/internal/export"
)

// maxFormMemory bounds the in-memory part of a multipart form body.
const maxFormMemory = 1 << 20

// ExportHandler handles mention downloads and the export run log.
type ExportHandler struct {
	service      *export.Service
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// NewExportHandler creates a new ExportHandler. Each chunk written to a
// download pushes the connection's write deadline writeTimeout into the future.
func NewExportHandler(service *export.Service, writeTimeout time.Duration, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		service:      service,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Download handles GET|POST|OPTIONS /download.
//
// Parameters come from the query string or a urlencoded or multipart form
// body, query first: start (alias datetime), end and format. Validation
// failures are answered with 400 before any upstream call. Once the 200 status
// is sent, a failure can no longer be reported in-band, so the connection is
// aborted and the client sees a truncated body.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		response.NoContent(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		response.BadRequest(w, r, "invalid request parameters")
		return
	}

	job, err := h.service.Prepare(export.Request{
		Start:  param(r, "start", "datetime"),
		End:    param(r, "end"),
		Format: param(r, "format"),

		RequestID: middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		if errors.Is(err, export.ErrInvalidRange) || errors.Is(err, export.ErrUnsupportedFormat) {
			response.BadRequest(w, r, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("failed to prepare export")
		response.InternalError(w, r, "failed to prepare export")
		return
	}

	log := h.logger.With().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("run_id", job.ID).
		Logger()

	header := w.Header()
	header.Set("Content-Type", job.ContentType)
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.Filename))
	header.Set("Cache-Control", "no-store")
	header.Set("X-Export-Id", job.ID)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for chunk, err := range job.Chunks(r.Context()) {
		if err != nil {
			log.Error().Err(err).Msg("export stream failed")
			panic(http.ErrAbortHandler)
		}
		if h.writeTimeout > 0 {
			if err := rc.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				log.Debug().Err(err).Msg("failed to extend write deadline")
			}
		}
		if _, err := w.Write(chunk); err != nil {
			log.Debug().Err(err).Msg("client stopped reading")
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.Debug().Err(err).Msg("flush failed")
			return
		}
	}
}

// param returns the first non-empty value among names, checking the query
// string before the form body for each name.
func param(r *http.Request, names ...string) string {
	query := r.URL.Query()
	for _, name := range names {
		if v := query.Get(name); v != "" {
			return v
		}
		if v := r.PostForm.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// ListExports handles GET /exports - most recent export runs first.
func (h *ExportHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	limit := export.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, r, fmt.Sprintf("invalid limit: %q is not a positive integer", raw))
			return
		}
		limit = export.ClampLimit(n)
	}

	runs, err := h.service.Runs(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list export runs")
		response.InternalError(w, r, "failed to list export runs")
		return
	}

	items := make([]models.ExportRun, 0, len(runs))
	for _, run := range runs {
		items = append(items, models.NewExportRun(run))
	}
	response.JSON(w, r, http.StatusOK, models.ExportRunList{Items: items, Limit: limit})
}

// GetExport handles GET /exports/{exportId}.
func (h *ExportHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "exportId")
	run, err := h.service.Run(r.Context(), id)
	if err != nil {
		if errors.Is(err, export.ErrRunNotFound) {
			response.NotFound(w, r, "export run not found")
			return
		}
		h.logger.Error().Err(err).Str("run_id", id).Msg("failed to get export run")
		response.InternalError(w, r, "failed to get export run")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewExportRun(run))
}
