// Package export streams time-bounded mention exports as CSV or XLSX files
// and keeps a log of export runs.
package export

import (
	"errors"
	"time"

	"github.com/mentionexport/mentionexport/internal/tabular"
)

// Repository errors.
var (
	ErrRunNotFound = errors.New("export run not found")
)

// Status is the lifecycle state of an export run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// Run records one export from start to finish.
type Run struct {
	ID         string
	Format     tabular.Format
	Filename   string
	QueryName  string
	Start      time.Time
	End        time.Time
	Pages      int
	Rows       int
	Bytes      int64
	Status     Status
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Terminal reports whether the run has finished.
func (r *Run) Terminal() bool {
	return r.Status != StatusRunning
}
