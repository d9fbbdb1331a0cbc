// Package mentions defines the upstream mention data model and the paginated
// source contract the export pipeline pulls from.
package mentions

import (
	"context"
	"encoding/json"
	"iter"
)

// Record is one mention as returned by the upstream API. Key order is kept as
// it appeared in the upstream document.
type Record = json.RawMessage

// Page is one batch of records in upstream order. A page may be empty.
type Page []Record

// Query selects the mentions to export.
type Query struct {
	// Name is the saved upstream query to run.
	Name string

	// Start and End are canonical UTC ISO-8601 timestamps.
	Start string
	End   string

	// PageSize is the number of records requested per page.
	PageSize int
}

// Source yields pages for a query in order. Iteration stops after the first
// error; the consumer may stop early, which releases any held resources.
type Source interface {
	Pages(ctx context.Context, q Query) iter.Seq2[Page, error]
}
