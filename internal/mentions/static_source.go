package mentions

import (
	"context"
	"iter"
	"sync"
)

// StaticSource serves a fixed list of pages. It is used for local development
// and tests.
type StaticSource struct {
	mu      sync.Mutex
	pages   []Page
	err     error
	errAt   int
	queries []Query
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source that yields pages in order.
func NewStaticSource(pages ...Page) *StaticSource {
	return &StaticSource{pages: pages, errAt: -1}
}

// FailAt makes the source yield err instead of the page at index i.
func (s *StaticSource) FailAt(i int, err error) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errAt = i
	s.err = err
	return s
}

// Queries returns every query the source has been asked to serve.
func (s *StaticSource) Queries() []Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Query, len(s.queries))
	copy(out, s.queries)
	return out
}

// Pages implements Source.
func (s *StaticSource) Pages(ctx context.Context, q Query) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		s.mu.Lock()
		s.queries = append(s.queries, q)
		pages, errAt, failErr := s.pages, s.errAt, s.err
		s.mu.Unlock()

		for i, page := range pages {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if i == errAt {
				yield(nil, failErr)
				return
			}
			if !yield(page, nil) {
				return
			}
		}
		if errAt >= len(pages) {
			yield(nil, failErr)
		}
	}
}
