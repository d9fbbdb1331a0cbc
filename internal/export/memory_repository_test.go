package export_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionexport/mentionexport/internal/export"
)

func TestInMemoryRepository_SaveAndGet(t *testing.T) {
	repo := export.NewInMemoryRepository()
	ctx := context.Background()

	run := &export.Run{ID: "r1", Status: export.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, repo.Save(ctx, run))

	run.Status = export.StatusCompleted
	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, export.StatusRunning, got.Status, "stored run must not alias the caller's")

	require.NoError(t, repo.Save(ctx, run))
	got, err = repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, export.StatusCompleted, got.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, export.ErrRunNotFound)
}

func TestInMemoryRepository_ListRecent(t *testing.T) {
	repo := export.NewInMemoryRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &export.Run{
			ID:        fmt.Sprintf("r%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "r4", runs[0].ID)
	assert.Equal(t, "r3", runs[1].ID)
	assert.Equal(t, "r2", runs[2].ID)

	runs, err = repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, export.DefaultListLimit, export.ClampLimit(0))
	assert.Equal(t, export.DefaultListLimit, export.ClampLimit(-3))
	assert.Equal(t, 10, export.ClampLimit(10))
	assert.Equal(t, export.MaxListLimit, export.ClampLimit(10_000))
}

func TestRun_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &export.Run{StartedAt: start, Status: export.StatusRunning}
	assert.Zero(t, run.Duration())
	assert.False(t, run.Terminal())

	end := start.Add(3 * time.Second)
	run.FinishedAt = &end
	run.Status = export.StatusCompleted
	assert.Equal(t, 3*time.Second, run.Duration())
	assert.True(t, run.Terminal())
}
