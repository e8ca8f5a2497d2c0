package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/watzon/clickloop/internal/database"
)

// StateStore persists the last fired minute of every job so a restart within
// the same minute never fires it twice.
type StateStore struct {
	db *database.DB
}

func NewStateStore(db *database.DB) *StateStore {
	return &StateStore{db: db}
}

type JobState struct {
	JobKey          string
	LastFiredMinute time.Time
	FireCount       int
	UpdatedAt       time.Time
}

// MarkFired records that the job fired for minute.
func (s *StateStore) MarkFired(ctx context.Context, jobKey string, minute time.Time) error {
	query := `
		INSERT INTO cron_state (job_key, last_fired_minute, fire_count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(job_key) DO UPDATE SET
			last_fired_minute = excluded.last_fired_minute,
			fire_count = cron_state.fire_count + 1,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		jobKey,
		database.FormatTime(minute.Truncate(time.Minute)),
		database.FormatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("saving cron state: %w", err)
	}

	return nil
}

// Get returns the state of a job, or nil if it never fired.
func (s *StateStore) Get(ctx context.Context, jobKey string) (*JobState, error) {
	query := `
		SELECT job_key, last_fired_minute, fire_count, updated_at
		FROM cron_state
		WHERE job_key = ?
	`

	state, err := scanState(s.db.QueryRowContext(ctx, query, jobKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cron state: %w", err)
	}
	return state, nil
}

func (s *StateStore) Delete(ctx context.Context, jobKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cron_state WHERE job_key = ?`, jobKey)
	if err != nil {
		return fmt.Errorf("deleting cron state: %w", err)
	}
	return nil
}

func (s *StateStore) List(ctx context.Context) ([]*JobState, error) {
	query := `
		SELECT job_key, last_fired_minute, fire_count, updated_at
		FROM cron_state
		ORDER BY job_key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying cron states: %w", err)
	}
	defer rows.Close()

	var states []*JobState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cron state: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cron states: %w", err)
	}

	return states, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*JobState, error) {
	var state JobState
	var lastFired, updatedAt string

	if err := row.Scan(&state.JobKey, &lastFired, &state.FireCount, &updatedAt); err != nil {
		return nil, err
	}

	t, err := database.ParseTime(lastFired)
	if err != nil {
		return nil, fmt.Errorf("parsing last_fired_minute: %w", err)
	}
	state.LastFiredMinute = t

	t, err = database.ParseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	state.UpdatedAt = t

	return &state, nil
}
