package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/metrics"
	"github.com/watzon/clickloop/internal/player"
)

// PlaybackOwner identifies manual playback as run token holder.
const PlaybackOwner = "playback"

// playback is one manual play of the editor list.
type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
	cycles int
}

// PlayCurrent plays the editor list repeat times (0 repeats until stopped)
// on a new goroutine. StopPlayback or Esc ends it.
func (e *Engine) PlayCurrent(ctx context.Context, repeat int) error {
	if repeat < 0 {
		return &actions.ValidationError{Field: "repeat", Message: "must be non-negative"}
	}
	l := e.Current()
	if l == nil {
		return ErrNoCurrentList
	}
	if l.Len() == 0 {
		return ErrNothingToPlay
	}

	release, err := e.token.TryAcquire(PlaybackOwner)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	pb := &playback{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.playback = pb
	e.mu.Unlock()

	e.bus.Emit(events.EventTypePlayback, l.Name(), events.ActionStarted, map[string]int{"repeat": repeat})
	log.Info().Str("list", l.Name()).Int("repeat", repeat).Msg("Playback started")

	go e.runPlayback(runCtx, pb, l, repeat, release)
	return nil
}

func (e *Engine) runPlayback(ctx context.Context, pb *playback, l *actions.List, repeat int, release func()) {
	defer close(pb.done)
	defer pb.cancel()

	run := e.history.Begin(ctx, history.SourcePlay, l.Name())
	started := time.Now()

	var err error
	cycles := 0
	for repeat == 0 || cycles < repeat {
		acts := l.Snapshot()
		run.Actions = len(acts)
		if err = e.player.Play(ctx, acts, player.Hooks{}); err != nil {
			break
		}
		cycles++
		e.mu.Lock()
		pb.cycles = cycles
		e.mu.Unlock()
		e.bus.Emit(events.EventTypePlayback, l.Name(), events.ActionChanged, map[string]int{"cycles": cycles, "repeat": repeat})
		if len(acts) == 0 {
			// Emptied while playing; avoid a hot loop.
			if err = player.Wait(ctx, 100*time.Millisecond); err != nil {
				break
			}
		}
	}
	release()

	status := history.StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status, err = history.StatusStopped, nil
	default:
		status = history.StatusFailed
		log.Error().Err(err).Str("list", l.Name()).Msg("Playback failed")
	}

	run.FullCycles = cycles
	e.history.Finish(context.Background(), run, status, err)
	metrics.RecordRun(string(history.SourcePlay), string(status), time.Since(started))

	e.mu.Lock()
	if e.playback == pb {
		e.playback = nil
	}
	e.mu.Unlock()

	log.Info().Str("list", l.Name()).Int("cycles", cycles).Str("status", string(status)).Msg("Playback finished")
	e.bus.Emit(events.EventTypePlayback, l.Name(), events.ActionFinished, map[string]any{
		"status": string(status),
		"cycles": cycles,
		"error":  errString(err),
	})
}

// StopPlayback stops manual playback and reports whether one was running.
func (e *Engine) StopPlayback() bool {
	e.mu.Lock()
	pb := e.playback
	e.mu.Unlock()
	if pb == nil {
		return false
	}
	pb.cancel()
	return true
}

// WaitPlayback blocks until the current manual playback, if any, ends.
func (e *Engine) WaitPlayback() {
	e.mu.Lock()
	pb := e.playback
	e.mu.Unlock()
	if pb != nil {
		<-pb.done
	}
}

// Playing reports whether manual playback is running and how many cycles it
// has completed.
func (e *Engine) Playing() (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playback == nil {
		return false, 0
	}
	return true, e.playback.cycles
}
