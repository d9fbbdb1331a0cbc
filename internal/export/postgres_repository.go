package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentionexport/mentionexport/internal/tabular"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS export_runs (
		id           UUID PRIMARY KEY,
		format       TEXT NOT NULL,
		filename     TEXT NOT NULL,
		query_name   TEXT NOT NULL DEFAULT '',
		range_start  TIMESTAMPTZ NOT NULL,
		range_end    TIMESTAMPTZ NOT NULL,
		pages        INTEGER NOT NULL DEFAULT 0,
		rows_written INTEGER NOT NULL DEFAULT 0,
		bytes        BIGINT NOT NULL DEFAULT 0,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT '',
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS export_runs_started_at_idx ON export_runs (started_at DESC);
`

// EnsureSchema creates the export_runs table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create export_runs schema: %w", err)
	}
	return nil
}

// Save upserts a run.
func (r *PostgresRepository) Save(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO export_runs (
			id, format, filename, query_name,
			range_start, range_end,
			pages, rows_written, bytes,
			status, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			pages = EXCLUDED.pages,
			rows_written = EXCLUDED.rows_written,
			bytes = EXCLUDED.bytes,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		string(run.Format),
		run.Filename,
		run.QueryName,
		run.Start,
		run.End,
		run.Pages,
		run.Rows,
		run.Bytes,
		string(run.Status),
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save export run: %w", err)
	}
	return nil
}

const selectRunColumns = `
	SELECT
		id, format, filename, query_name,
		range_start, range_end,
		pages, rows_written, bytes,
		status, error, started_at, finished_at
	FROM export_runs
`

// Get retrieves a run by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, selectRunColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRecent returns runs ordered by start time, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := r.pool.Query(ctx, selectRunColumns+` ORDER BY started_at DESC, id DESC LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run    Run
		format string
		status string
	)
	err := row.Scan(
		&run.ID,
		&format,
		&run.Filename,
		&run.QueryName,
		&run.Start,
		&run.End,
		&run.Pages,
		&run.Rows,
		&run.Bytes,
		&status,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Format = tabular.Format(format)
	run.Status = Status(status)
	return &run, nil
}
