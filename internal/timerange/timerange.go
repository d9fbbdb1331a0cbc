// Package timerange resolves caller-supplied start/end parameters into a
// canonical UTC interval.
package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultSpan is the length of the range when no end is supplied.
const DefaultSpan = 24 * time.Hour

// ErrInvalidRange is matched by every error Resolve returns.
var ErrInvalidRange = errors.New("invalid time range")

// RangeError describes which parameter was rejected and why.
type RangeError struct {
	// Param is the request parameter name ("start" or "end").
	Param string

	// Value is the raw input, empty when the parameter was missing.
	Value string

	// Missing is true when a required parameter was absent.
	Missing bool
}

func (e *RangeError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing required parameter '%s' (ISO datetime)", e.Param)
	}
	return fmt.Sprintf("invalid %s datetime: %q is not an ISO-8601 timestamp", e.Param, e.Value)
}

// Is reports whether target is ErrInvalidRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Range is an immutable UTC interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// layouts are tried in order after "Z" has been rewritten to "+00:00" and a
// space date/time separator to "T". Fractional seconds are accepted by
// time.Parse after the seconds field even when the layout omits them.
var layouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07",
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// Resolve parses startParam and endParam. An empty string means the parameter
// was not supplied. When endParam is empty the range spans DefaultSpan from
// start. Start and end are not checked against each other.
func Resolve(startParam, endParam string) (Range, error) {
	if strings.TrimSpace(startParam) == "" {
		return Range{}, &RangeError{Param: "start", Missing: true}
	}

	start, err := Parse(startParam)
	if err != nil {
		return Range{}, &RangeError{Param: "start", Value: startParam}
	}

	if strings.TrimSpace(endParam) == "" {
		return Range{Start: start, End: start.Add(DefaultSpan)}, nil
	}

	end, err := Parse(endParam)
	if err != nil {
		return Range{}, &RangeError{Param: "end", Value: endParam}
	}

	return Range{Start: start, End: end}, nil
}

// Parse reads an ISO-8601 timestamp. A trailing "Z" is equivalent to "+00:00"
// and a value without an offset is taken to be UTC. The result is always UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatISO renders t in UTC with a literal "Z" suffix. Sub-second precision is
// kept to the microsecond and printed only when non-zero.
func FormatISO(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05.000000Z")
}

// StartISO returns the canonical form of Start expected by upstream sources.
func (r Range) StartISO() string {
	return FormatISO(r.Start)
}

// EndISO returns the canonical form of End expected by upstream sources.
func (r Range) EndISO() string {
	return FormatISO(r.End)
}

// Stamp renders Start as a compact basic-format timestamp for file names.
func (r Range) Stamp() string {
	return r.Start.UTC().Format("20060102T150405")
}
