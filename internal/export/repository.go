package export

import "context"

// Default and maximum page sizes for listing runs.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Repository defines the interface for export run persistence.
type Repository interface {
	// Save inserts the run or replaces the stored run with the same ID.
	Save(ctx context.Context, run *Run) error

	// Get retrieves a run by ID.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, id string) (*Run, error)

	// ListRecent returns up to limit runs, most recently started first.
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

// ClampLimit bounds a requested list size to [1, MaxListLimit], using
// DefaultListLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
