package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/watzon/clickloop/internal/database"
)

const runColumns = "id, source, name, status, actions, full_cycles, error, started_at, finished_at, duration_ms"

// Store handles database operations for runs.
type Store struct {
	db *database.DB
}

// NewStore creates a new run store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new run.
func (s *Store) Create(ctx context.Context, run *Run) error {
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Source,
		run.Name,
		run.Status,
		run.Actions,
		run.FullCycles,
		nullString(run.Error),
		database.FormatTime(run.StartedAt),
		finishedAt(run),
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", database.ClassifyError(err))
	}

	return nil
}

// Update stores the final state of a run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	query := `
		UPDATE runs
		SET status = ?, actions = ?, full_cycles = ?, error = ?, finished_at = ?, duration_ms = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		run.Status,
		run.Actions,
		run.FullCycles,
		nullString(run.Error),
		finishedAt(run),
		run.DurationMs,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", database.ClassifyError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, database.ErrNotFound)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	query, args := database.NewQuery("runs").Select(runColumns).Where("id", id).Build()

	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return run, nil
}

// List returns runs matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Run, error) {
	q := database.NewQuery("runs").Select(runColumns)
	if f.Source != "" {
		q.Where("source", f.Source)
	}
	if f.Status != "" {
		q.Where("status", f.Status)
	}
	if !f.Since.IsZero() {
		q.Filter("started_at", database.OpGte, database.FormatTime(f.Since))
	}
	q.OrderBy("started_at", database.SortDesc).Limit(f.Limit)

	query, args := q.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// Count returns the number of runs matching f. Limit is ignored.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	q := database.NewQuery("runs")
	if f.Source != "" {
		q.Where("source", f.Source)
	}
	if f.Status != "" {
		q.Where("status", f.Status)
	}
	query, args := q.BuildCount()

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes runs started before now minus age and returns how
// many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	query, args := database.NewDelete("runs").
		Filter("started_at", database.OpLt, database.FormatTime(cutoff)).
		Build()

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting old runs: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var errMsg, finished sql.NullString
	var started string

	if err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Name,
		&run.Status,
		&run.Actions,
		&run.FullCycles,
		&errMsg,
		&started,
		&finished,
		&run.DurationMs,
	); err != nil {
		return nil, err
	}

	run.Error = errMsg.String

	t, err := database.ParseTime(started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.StartedAt = t

	ft, err := database.ParseNullTime(finished)
	if err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}
	if !ft.IsZero() {
		run.FinishedAt = &ft
	}

	return &run, nil
}

func finishedAt(run *Run) sql.NullString {
	if run.FinishedAt == nil {
		return sql.NullString{}
	}
	return database.NullTime(*run.FinishedAt)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
