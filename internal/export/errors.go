package export

import (
	"fmt"

	"github.com/mentionexport/mentionexport/internal/tabular"
	"github.com/mentionexport/mentionexport/internal/timerange"
)

// Request validation errors, matched with errors.Is.
var (
	ErrInvalidRange      = timerange.ErrInvalidRange
	ErrUnsupportedFormat = tabular.ErrUnsupportedFormat
)

// UpstreamError is yielded when a page cannot be fetched.
type UpstreamError struct {
	// Page is the 1-based number of the page that failed.
	Page int
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream fetch failed at page %d: %v", e.Page, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SinkError is yielded when encoding or staging the output fails.
type SinkError struct {
	Format tabular.Format
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink failed: %v", e.Format, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
