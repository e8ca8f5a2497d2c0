// Package history records every replay, manual playback and cron fire in
// the SQLite database.
package history

import "time"

// Source identifies what started a run.
type Source string

const (
	SourceReplay Source = "replay"
	SourcePlay   Source = "play"
	SourceCron   Source = "cron"
)

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
	// StatusSkipped marks a cron fire dropped because another replay held
	// the injector.
	StatusSkipped Status = "skipped"
)

// Run is one history entry.
type Run struct {
	ID         string     `json:"id"`
	Source     Source     `json:"source"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Actions    int        `json:"actions"`
	FullCycles int        `json:"full_cycles"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Source Source
	Status Status
	Since  time.Time
	Limit  int
}
