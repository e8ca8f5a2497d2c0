// Package engine ties the recorder, the replay and cron schedulers and the
// player together around one run token, and publishes every state change on
// the event bus.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/clock"
	"github.com/watzon/clickloop/internal/config"
	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/inject"
	"github.com/watzon/clickloop/internal/player"
	"github.com/watzon/clickloop/internal/recorder"
	"github.com/watzon/clickloop/internal/replay"
	"github.com/watzon/clickloop/internal/scheduler"
)

var (
	// ErrNoCurrentList is returned when an operation needs an editor list.
	ErrNoCurrentList = errors.New("no current list")
	// ErrNothingToPlay is returned when the current list has no actions.
	ErrNothingToPlay = errors.New("current list has no actions")
)

// Options configures an Engine. Injector is required; the rest default.
type Options struct {
	Config    *config.Config
	Injector  inject.Injector
	Clock     clock.Clock
	Clipboard recorder.Clipboard
	Bus       *events.EventBus
	History   *history.Logger
	State     *scheduler.StateStore
}

// Engine owns the editor list, the replay set and the cron table.
type Engine struct {
	cfg     *config.Config
	bus     *events.EventBus
	history *history.Logger

	token    *player.Token
	player   *player.Player
	recorder *recorder.Recorder
	replay   *replay.Scheduler
	cron     *scheduler.Scheduler
	lists    *actions.Set
	jobs     *scheduler.Table

	mu        sync.Mutex
	current   *actions.List
	replayRun *history.Run
	playback  *playback
}

// New wires an engine.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	e := &Engine{
		cfg:     cfg,
		bus:     opts.Bus,
		history: opts.History,
		token:   player.NewToken(),
		player:  player.New(inject.NewLocked(opts.Injector)),
		lists:   actions.NewSet(),
		jobs:    scheduler.NewTable(),
	}

	e.recorder = recorder.New(recorder.Options{
		NamePrefix: cfg.Recorder.NamePrefix,
		Clock:      opts.Clock,
		Clipboard:  opts.Clipboard,
	})

	e.replay = replay.New(e.player, e.token, replay.Options{
		RepeatAll: cfg.Replay.RepeatAll,
		PausePoll: cfg.Replay.PausePoll,
		Clock:     opts.Clock,
		OnState:   e.onReplayState,
		OnFinish:  e.onReplayFinish,
	})

	e.cron = scheduler.NewScheduler(e.jobs, e.player, e.token, scheduler.Config{
		Tick:             cfg.Cron.Tick,
		Catchup:          cfg.Cron.Catchup,
		CatchupWindow:    cfg.Cron.CatchupWindow,
		OnBusy:           cfg.Cron.OnBusy,
		DisableExecution: !cfg.Cron.Execute,
		Clock:            opts.Clock,
		State:            opts.State,
		History:          opts.History,
		OnFire:           e.onCronFire,
	})

	return e
}

// Start runs the cron scheduler until Stop.
func (e *Engine) Start(ctx context.Context) {
	e.cron.Start(ctx)
}

// Stop cancels every run and waits for them to end.
func (e *Engine) Stop() {
	e.StopPlayback()
	e.WaitPlayback()
	e.replay.Stop()
	e.replay.Wait()
	e.cron.Stop()
}

// Lists returns the replay set.
func (e *Engine) Lists() *actions.Set { return e.lists }

// Jobs returns the cron table.
func (e *Engine) Jobs() *scheduler.Table { return e.jobs }

// Recorder returns the recorder.
func (e *Engine) Recorder() *recorder.Recorder { return e.recorder }

// Replay returns the replay scheduler.
func (e *Engine) Replay() *replay.Scheduler { return e.replay }

// Cron returns the cron scheduler.
func (e *Engine) Cron() *scheduler.Scheduler { return e.cron }

// Token returns the run token shared by every replay.
func (e *Engine) Token() *player.Token { return e.token }

// Current returns the editor list, or nil.
func (e *Engine) Current() *actions.List {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetCurrent replaces the editor list.
func (e *Engine) SetCurrent(l *actions.List) {
	e.mu.Lock()
	e.current = l
	e.mu.Unlock()
	e.emitEditor(l)
}

// ToggleRecording starts a recording, or stops the running one. The new or
// finished recording becomes the editor list.
func (e *Engine) ToggleRecording() (*actions.List, bool, error) {
	l, started, err := e.recorder.Toggle()
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	e.current = l
	e.mu.Unlock()

	action := events.ActionStopped
	if started {
		action = events.ActionStarted
	}
	e.bus.Emit(events.EventTypeRecorder, l.Name(), action, map[string]any{"actions": l.Len()})
	return l, started, nil
}

// SetProbe turns coordinate probing on or off.
func (e *Engine) SetProbe(on bool) {
	e.recorder.SetProbe(on)
}

// HandleInput processes one captured input event. Esc stops, in order of
// precedence, the recording, the replay, manual playback or a cron job
// playing. Home starts the replay and End toggles pause. The event is then
// recorded if a recording is in progress.
func (e *Engine) HandleInput(ctx context.Context, ev recorder.InputEvent) {
	if ev.Kind == recorder.KeyPress {
		e.hotkey(ctx, strings.ToLower(ev.Key))
	}

	probing := e.recorder.Probing()
	if e.recorder.Observe(ev) {
		if l := e.recorder.Current(); l != nil {
			e.bus.Emit(events.EventTypeRecorder, l.Name(), events.ActionRecorded, map[string]any{"actions": l.Len()})
		}
		return
	}
	if probing && ev.Kind == recorder.PointerPress {
		e.bus.Emit(events.EventTypeRecorder, "", events.ActionProbed, map[string]int{"x": ev.X, "y": ev.Y})
	}
}

func (e *Engine) hotkey(ctx context.Context, key string) {
	switch key {
	case "esc":
		switch {
		case e.recorder.Recording():
			if _, _, err := e.ToggleRecording(); err != nil {
				log.Warn().Err(err).Msg("Failed to stop recording")
			}
		case e.replay.State() != replay.Stopped:
			e.StopReplay()
		case e.StopPlayback():
		default:
			e.cron.StopPlayback()
		}
	case "home":
		if err := e.StartReplay(ctx); err != nil {
			log.Warn().Err(err).Msg("Hotkey could not start replay")
		}
	case "end":
		e.PauseReplay()
	}
}

// AddToReplay appends the editor list to the replay set with the next
// sequence number and leaves the editor empty.
func (e *Engine) AddToReplay() (*actions.List, error) {
	e.mu.Lock()
	l := e.current
	if l == nil {
		e.mu.Unlock()
		return nil, ErrNoCurrentList
	}
	if err := l.Validate(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.lists.Add(l)
	e.current = nil
	e.mu.Unlock()

	log.Info().Str("list", l.Name()).Int("sequence", l.Policy().Sequence).Msg("List added to replay")
	e.emitLists()
	e.emitEditor(nil)
	return l, nil
}

// LoadIntoEditor copies the actions of replay list i into a new editor list
// of the same name with default policy.
func (e *Engine) LoadIntoEditor(i int) (*actions.List, error) {
	src, err := e.lists.Get(i)
	if err != nil {
		return nil, err
	}
	l, err := actions.NewListWithPolicy(actions.Policy{
		Name:   src.Name(),
		Repeat: actions.DefaultRepeat,
		Active: true,
	}, src.Snapshot())
	if err != nil {
		return nil, err
	}
	e.SetCurrent(l)
	return l, nil
}

// DeleteAction removes action i of the editor list.
func (e *Engine) DeleteAction(i int) error {
	l := e.Current()
	if l == nil {
		return ErrNoCurrentList
	}
	if err := l.Remove(i); err != nil {
		return err
	}
	e.emitEditor(l)
	return nil
}

// ClearActions empties the editor list.
func (e *Engine) ClearActions() {
	l := e.Current()
	if l == nil {
		return
	}
	l.Clear()
	e.emitEditor(l)
}

// DeleteList removes replay list i.
func (e *Engine) DeleteList(i int) error {
	if err := e.lists.Remove(i); err != nil {
		return err
	}
	e.emitLists()
	return nil
}

// DuplicateList inserts a copy of replay list i after it.
func (e *Engine) DuplicateList(i int) (*actions.List, error) {
	l, err := e.lists.Duplicate(i)
	if err != nil {
		return nil, err
	}
	e.emitLists()
	return l, nil
}

// MoveList moves replay list i one place up (delta < 0) or down.
func (e *Engine) MoveList(i, delta int) error {
	var err error
	if delta < 0 {
		err = e.lists.MoveUp(i)
	} else {
		err = e.lists.MoveDown(i)
	}
	if err != nil {
		return err
	}
	e.emitLists()
	return nil
}

// ToggleList flips the active flag of replay list i.
func (e *Engine) ToggleList(i int) (bool, error) {
	active, err := e.lists.ToggleActive(i)
	if err != nil {
		return false, err
	}
	e.emitLists()
	return active, nil
}

// ClearLists empties the replay set.
func (e *Engine) ClearLists() {
	e.lists.Clear()
	e.emitLists()
}

func (e *Engine) emitEditor(l *actions.List) {
	if l == nil {
		e.bus.Emit(events.EventTypeEditor, "", events.ActionChanged, map[string]any{"actions": 0})
		return
	}
	e.bus.Emit(events.EventTypeEditor, l.Name(), events.ActionChanged, map[string]any{"actions": l.Len()})
}

func (e *Engine) emitLists() {
	e.bus.Emit(events.EventTypeReplay, "", events.ActionChanged, map[string]any{"lists": e.lists.Len()})
}
