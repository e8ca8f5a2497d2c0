package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/replay"
)

// StartReplay begins cyclic replay of the replay set.
func (e *Engine) StartReplay(ctx context.Context) error {
	// Held until the run is registered so that onReplayFinish sees it.
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.replay.Start(ctx, e.lists); err != nil {
		return err
	}
	e.replayRun = e.history.Begin(ctx, history.SourceReplay, "")
	return nil
}

// PauseReplay toggles pause and returns the new state.
func (e *Engine) PauseReplay() replay.State {
	return e.replay.TogglePause()
}

// StopReplay stops the replay, if running.
func (e *Engine) StopReplay() {
	e.replay.Stop()
}

// SetRepeatAll changes whether the replay repeats full cycles.
func (e *Engine) SetRepeatAll(on bool) {
	e.replay.SetRepeatAll(on)
}

func (e *Engine) onReplayState(st replay.State) {
	action := events.ActionStopped
	switch st {
	case replay.Running:
		action = events.ActionStarted
	case replay.Paused:
		action = events.ActionPaused
	}
	e.bus.Emit(events.EventTypeReplay, "", action, map[string]any{
		"state": st.String(),
		"stats": e.replay.Stats(),
	})
}

func (e *Engine) onReplayFinish(res replay.Result) {
	e.mu.Lock()
	run := e.replayRun
	e.replayRun = nil
	e.mu.Unlock()

	if run != nil {
		run.FullCycles = res.Stats.FullCycles
		e.history.Finish(context.Background(), run, history.Status(res.Status), res.Err)
	}

	log.Debug().Str("status", res.Status).Int("full_cycles", res.Stats.FullCycles).Msg("Replay run recorded")
	e.bus.Emit(events.EventTypeReplay, "", events.ActionFinished, map[string]any{
		"status":      res.Status,
		"full_cycles": res.Stats.FullCycles,
		"error":       errString(res.Err),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
