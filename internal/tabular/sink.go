// Package tabular encodes flattened rows into downloadable tabular files.
package tabular

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/mentionexport/mentionexport/internal/flatten"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Sink errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrSinkState         = errors.New("sink is not accepting this operation in its current state")
	ErrRowLimit          = errors.New("spreadsheet row limit exceeded")
)

// ParseFormat normalizes a format name. Empty input is rejected.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (expected csv or xlsx)", ErrUnsupportedFormat, s)
	}
}

// Sink accepts pages of rows and produces the encoded file.
//
// Write is called once per non-empty page and may return bytes to emit
// immediately. Finalize is called once after the last page and yields the
// remaining bytes. Close releases resources and is safe to call at any point,
// more than once.
type Sink interface {
	ContentType() string
	Extension() string
	Write(schema *flatten.Schema, rows iter.Seq[flatten.Row], includeHeader bool) ([]byte, error)
	Finalize(ctx context.Context) iter.Seq2[[]byte, error]
	Close() error
}

// Options configures sink construction.
type Options struct {
	// TempDir is where spreadsheet sinks stage the serialized workbook.
	// Empty means the OS default.
	TempDir string
}

// New creates a sink for format.
func New(format Format, opts Options) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSV(), nil
	case FormatXLSX:
		return NewXLSX(opts.TempDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
}

// ContentType returns the MIME type for format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return contentTypeCSV
	case FormatXLSX:
		return contentTypeXLSX
	default:
		return "application/octet-stream"
	}
}
