package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/database"
)

// Logger records runs and prunes old history in the background. A nil
// *Logger is valid and records nothing.
type Logger struct {
	store     *Store
	retention time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewLogger creates a run logger. retention <= 0 keeps history forever.
func NewLogger(db *database.DB, retention time.Duration) *Logger {
	ctx, cancel := context.WithCancel(context.Background())

	return &Logger{
		store:     NewStore(db),
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Store exposes the underlying store for queries.
func (l *Logger) Store() *Store {
	return l.store
}

// Start begins background cleanup.
func (l *Logger) Start() {
	if l == nil || l.retention <= 0 {
		return
	}
	l.prune(l.ctx)
	l.wg.Add(1)
	go l.cleanupLoop(l.ctx, time.Hour)
}

// Stop gracefully shuts down the logger.
func (l *Logger) Stop() {
	if l == nil {
		return
	}
	l.cancel()
	l.wg.Wait()
}

// Begin records a running entry and returns it for Finish.
func (l *Logger) Begin(ctx context.Context, source Source, name string) *Run {
	run := &Run{
		ID:        uuid.New().String(),
		Source:    source,
		Name:      name,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if l == nil {
		return run
	}

	if err := l.store.Create(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run start")
	}
	return run
}

// Finish stores the outcome of run.
func (l *Logger) Finish(ctx context.Context, run *Run, status Status, runErr error) {
	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
	run.DurationMs = now.Sub(run.StartedAt).Milliseconds()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if l == nil {
		return
	}

	if err := l.store.Update(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run outcome")
		return
	}

	log.Debug().
		Str("run_id", run.ID).
		Str("source", string(run.Source)).
		Str("name", run.Name).
		Str("status", string(status)).
		Int64("duration_ms", run.DurationMs).
		Msg("Run recorded")
}

// Record stores a finished run in one step.
func (l *Logger) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if l == nil {
		return nil
	}
	if err := l.store.Create(ctx, run); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

func (l *Logger) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune(ctx)
		}
	}
}

func (l *Logger) prune(ctx context.Context) {
	n, err := l.store.DeleteOlderThan(ctx, l.retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune run history")
		return
	}
	if n > 0 {
		log.Debug().Int64("removed", n).Msg("Pruned run history")
	}
}
