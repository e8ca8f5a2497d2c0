package events

import "time"

// EventType is the subsystem an event comes from.
type EventType string

const (
	// EventTypeRecorder covers recording start/stop and captured actions.
	EventTypeRecorder EventType = "recorder"
	// EventTypeEditor covers changes to the current list and the replay set.
	EventTypeEditor EventType = "editor"
	// EventTypeReplay covers the replay scheduler state machine.
	EventTypeReplay EventType = "replay"
	// EventTypePlayback covers manual playback of the current list.
	EventTypePlayback EventType = "playback"
	// EventTypeCron covers cron job fires and table edits.
	EventTypeCron EventType = "cron"
)

// Actions used across event types.
const (
	ActionStarted  = "started"
	ActionStopped  = "stopped"
	ActionPaused   = "paused"
	ActionResumed  = "resumed"
	ActionFinished = "finished"
	ActionRecorded = "recorded"
	ActionProbed   = "probed"
	ActionChanged  = "changed"
	ActionFired    = "fired"
)

// Event is one engine status change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Source    string    `json:"source"` // list or job name, when there is one
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
