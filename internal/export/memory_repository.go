package export

import (
	"context"
	"sort"
	"sync"
)

// maxMemoryRuns bounds how many runs the in-memory log keeps.
const maxMemoryRuns = 1000

// InMemoryRepository is an in-memory implementation of Repository.
// It keeps the most recent runs only. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory run repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Save inserts or replaces a run.
func (r *InMemoryRepository) Save(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *run
	r.runs[run.ID] = &cpy

	if len(r.runs) > maxMemoryRuns {
		r.evictOldest()
	}
	return nil
}

func (r *InMemoryRepository) evictOldest() {
	var oldest *Run
	for _, run := range r.runs {
		if oldest == nil || run.StartedAt.Before(oldest.StartedAt) {
			oldest = run
		}
	}
	if oldest != nil {
		delete(r.runs, oldest.ID)
	}
}

// Get retrieves a run by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	cpy := *run
	return &cpy, nil
}

// ListRecent returns runs ordered by start time, newest first.
func (r *InMemoryRepository) ListRecent(_ context.Context, limit int) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		cpy := *run
		runs = append(runs, &cpy)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	limit = ClampLimit(limit)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
