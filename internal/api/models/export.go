package models

import (
	"time"

	"github.com/mentionexport/mentionexport/internal/export"
)

// ExportRun is the JSON view of one export run.
type ExportRun struct {
	ID          string     `json:"id"`
	Format      string     `json:"format"`
	Filename    string     `json:"filename"`
	QueryName   string     `json:"queryName,omitempty"`
	Start       Timestamp  `json:"start"`
	End         Timestamp  `json:"end"`
	Status      string     `json:"status"`
	Pages       int        `json:"pages"`
	Rows        int        `json:"rows"`
	Bytes       int64      `json:"bytes"`
	Error       string     `json:"error,omitempty"`
	StartedAt   Timestamp  `json:"startedAt"`
	FinishedAt  *Timestamp `json:"finishedAt,omitempty"`
	DurationSec float64    `json:"durationSeconds,omitempty"`
}

// ExportRunList is the body of GET /exports.
type ExportRunList struct {
	Items []ExportRun `json:"items"`
	Limit int         `json:"limit"`
}

// NewExportRun converts a run to its JSON view.
func NewExportRun(run *export.Run) ExportRun {
	out := ExportRun{
		ID:        run.ID,
		Format:    string(run.Format),
		Filename:  run.Filename,
		QueryName: run.QueryName,
		Start:     Timestamp(run.Start),
		End:       Timestamp(run.End),
		Status:    string(run.Status),
		Pages:     run.Pages,
		Rows:      run.Rows,
		Bytes:     run.Bytes,
		Error:     run.Error,
		StartedAt: Timestamp(run.StartedAt),
	}
	if run.FinishedAt != nil {
		finished := Timestamp(*run.FinishedAt)
		out.FinishedAt = &finished
		out.DurationSec = run.Duration().Round(time.Millisecond).Seconds()
	}
	return out
}
