package tabular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/mentionexport/mentionexport/internal/flatten"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// ChunkSize is the size of each chunk read back from the staged workbook.
	ChunkSize = 32 * 1024

	sheetName = "Sheet1"
)

type xlsxState int

const (
	stateAccumulating xlsxState = iota
	stateFinalizing
	stateStreaming
	stateDone
	stateFailed
)

func (s xlsxState) String() string {
	switch s {
	case stateAccumulating:
		return "accumulating"
	case stateFinalizing:
		return "finalizing"
	case stateStreaming:
		return "streaming"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// XLSX appends rows to a streamed worksheet and, on Finalize, serializes the
// workbook to a temporary file which is then read back in fixed-size chunks.
// The temporary file is removed on every exit path.
type XLSX struct {
	tempDir string
	file    *excelize.File
	sw      *excelize.StreamWriter
	state   xlsxState
	nextRow int
	header  bool
	closed  bool

	// serialize writes the whole workbook to w.
	serialize func(w io.Writer) error
}

var _ Sink = (*XLSX)(nil)

// NewXLSX creates a spreadsheet sink staging its output under tempDir.
func NewXLSX(tempDir string) (*XLSX, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create stream writer: %w", err)
	}

	return &XLSX{
		tempDir: tempDir,
		file:    f,
		sw:      sw,
		nextRow: 1,

		serialize: func(w io.Writer) error { return f.Write(w) },
	}, nil
}

// ContentType implements Sink.
func (x *XLSX) ContentType() string { return contentTypeXLSX }

// Extension implements Sink.
func (x *XLSX) Extension() string { return string(FormatXLSX) }

// State reports the sink's lifecycle state.
func (x *XLSX) State() string { return x.state.String() }

// Write appends rows to the worksheet and returns no bytes. The header row is
// written at most once, before the first data row.
func (x *XLSX) Write(schema *flatten.Schema, rows iter.Seq[flatten.Row], includeHeader bool) ([]byte, error) {
	if x.state != stateAccumulating {
		return nil, ErrSinkState
	}

	if includeHeader && !x.header {
		cols := schema.Columns()
		cells := make([]interface{}, len(cols))
		for i, c := range cols {
			cells[i] = c
		}
		if err := x.appendRow(cells); err != nil {
			return nil, err
		}
		x.header = true
	}

	for row := range rows {
		cells := make([]interface{}, 0, len(row.Values)+len(row.Extra))
		for _, v := range row.Values {
			cells = append(cells, cellValue(v))
		}
		for _, f := range row.Extra {
			cells = append(cells, cellValue(f.Value))
		}
		if err := x.appendRow(cells); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (x *XLSX) appendRow(cells []interface{}) error {
	if x.nextRow > excelize.TotalRows {
		x.state = stateFailed
		return fmt.Errorf("%w: %d rows", ErrRowLimit, excelize.TotalRows)
	}

	cell, err := excelize.CoordinatesToCellName(1, x.nextRow)
	if err != nil {
		x.state = stateFailed
		return fmt.Errorf("cell name for row %d: %w", x.nextRow, err)
	}
	if err := x.sw.SetRow(cell, cells); err != nil {
		x.state = stateFailed
		return fmt.Errorf("set row %d: %w", x.nextRow, err)
	}
	x.nextRow++
	return nil
}

func cellValue(v flatten.Value) interface{} {
	switch v.Kind {
	case flatten.KindNull:
		return nil
	case flatten.KindBool:
		return v.Raw == "true"
	case flatten.KindNumber:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
		return v.Raw
	default:
		return v.Raw
	}
}

// Finalize flushes the worksheet, stages the workbook in a temporary file and
// yields it in ChunkSize pieces. The temporary file is closed and removed when
// the sequence ends, fails, or the consumer stops early.
func (x *XLSX) Finalize(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if x.state != stateAccumulating {
			yield(nil, ErrSinkState)
			return
		}
		x.state = stateFinalizing
		defer x.Close()

		if err := x.sw.Flush(); err != nil {
			x.state = stateFailed
			yield(nil, fmt.Errorf("flush worksheet: %w", err))
			return
		}

		tmp, err := os.CreateTemp(x.tempDir, "mentions-*.xlsx")
		if err != nil {
			x.state = stateFailed
			yield(nil, fmt.Errorf("create temp file: %w", err))
			return
		}
		defer func() {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}()

		if err := x.serialize(tmp); err != nil {
			x.state = stateFailed
			yield(nil, fmt.Errorf("serialize workbook: %w", err))
			return
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			x.state = stateFailed
			yield(nil, fmt.Errorf("rewind temp file: %w", err))
			return
		}

		x.state = stateStreaming
		buf := make([]byte, ChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				x.state = stateFailed
				yield(nil, err)
				return
			}

			n, err := io.ReadFull(tmp, buf)
			if n > 0 {
				if !yield(bytes.Clone(buf[:n]), nil) {
					x.state = stateDone
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if err != nil {
				x.state = stateFailed
				yield(nil, fmt.Errorf("read temp file: %w", err))
				return
			}
		}
		x.state = stateDone
	}
}

// Close releases the workbook. It does not change a terminal state.
func (x *XLSX) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	if x.state == stateAccumulating {
		x.state = stateFailed
	}
	return x.file.Close()
}
