package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"iter"

	"github.com/mentionexport/mentionexport/internal/flatten"
)

const contentTypeCSV = "text/csv"

// CSV encodes each page as an independent chunk of RFC 4180 text. It keeps no
// state between pages beyond whether it has been finalized.
type CSV struct {
	finalized bool
	record    []string
}

var _ Sink = (*CSV)(nil)

// NewCSV creates a CSV sink.
func NewCSV() *CSV {
	return &CSV{}
}

// ContentType implements Sink.
func (c *CSV) ContentType() string { return contentTypeCSV }

// Extension implements Sink.
func (c *CSV) Extension() string { return string(FormatCSV) }

// Write encodes rows, preceded by the header line when includeHeader is set.
// Extra fields are appended after the schema columns.
func (c *CSV) Write(schema *flatten.Schema, rows iter.Seq[flatten.Row], includeHeader bool) ([]byte, error) {
	if c.finalized {
		return nil, ErrSinkState
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if includeHeader {
		if err := w.Write(schema.Columns()); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row := range rows {
		c.record = c.record[:0]
		for _, v := range row.Values {
			c.record = append(c.record, v.Text())
		}
		for _, f := range row.Extra {
			c.record = append(c.record, f.Value.Text())
		}
		if err := w.Write(c.record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Finalize yields nothing; every byte was already returned by Write.
func (c *CSV) Finalize(_ context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if c.finalized {
			yield(nil, ErrSinkState)
			return
		}
		c.finalized = true
	}
}

// Close implements Sink.
func (c *CSV) Close() error {
	c.finalized = true
	return nil
}
