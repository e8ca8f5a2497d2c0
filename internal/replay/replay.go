// Package replay runs full cycles over the replay set: lists in sequence
// order, each repeated per its policy and gated by its interval.
package replay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/clock"
	"github.com/watzon/clickloop/internal/metrics"
	"github.com/watzon/clickloop/internal/player"
)

// DefaultPausePoll is how often a paused run checks whether to continue.
const DefaultPausePoll = 100 * time.Millisecond

// TokenOwner identifies the replay scheduler as run token holder.
const TokenOwner = "replay"

var (
	ErrAlreadyRunning = errors.New("replay already running")
	ErrNoLists        = errors.New("no lists to replay")
)

// State is the scheduler lifecycle state.
type State int32

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Run outcome statuses.
const (
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// Stats describes the progress of the current or last run.
type Stats struct {
	FullCycles  int       `json:"full_cycles"`
	CurrentList string    `json:"current_list,omitempty"`
	ActionIndex int       `json:"action_index"`
	RepeatCount int       `json:"repeat_count"`
	StartedAt   time.Time `json:"started_at"`
}

// Result summarizes a finished run.
type Result struct {
	Status     string
	Err        error
	Stats      Stats
	StartedAt  time.Time
	FinishedAt time.Time
}

// Source supplies the lists of a full cycle in ascending sequence order.
// It is read again at the start of every cycle. *actions.Set implements it.
type Source interface {
	Sorted() []*actions.List
}

// Options configures a Scheduler.
type Options struct {
	RepeatAll bool
	PausePoll time.Duration
	Clock     clock.Clock
	// OnState is called after every state transition.
	OnState func(State)
	// OnFinish is called once per run, after the token is released and
	// before the state becomes Stopped; Start returns ErrAlreadyRunning
	// until it returns. It must not call Wait.
	OnFinish func(Result)
}

// Scheduler drives cyclic replay. Only one run is active at a time.
type Scheduler struct {
	player    *player.Player
	token     *player.Token
	clock     clock.Clock
	pausePoll time.Duration
	onState   func(State)
	onFinish  func(Result)

	repeatAll atomic.Bool
	state     atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
	err    error
}

// New creates a stopped scheduler.
func New(p *player.Player, token *player.Token, opts Options) *Scheduler {
	if opts.PausePoll <= 0 {
		opts.PausePoll = DefaultPausePoll
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	s := &Scheduler{
		player:    p,
		token:     token,
		clock:     opts.Clock,
		pausePoll: opts.PausePoll,
		onState:   opts.OnState,
		onFinish:  opts.OnFinish,
	}
	s.repeatAll.Store(opts.RepeatAll)
	return s
}

// SetRepeatAll changes whether full cycles repeat. A running cycle picks the
// new value up when it finishes.
func (s *Scheduler) SetRepeatAll(on bool) {
	s.repeatAll.Store(on)
}

// RepeatAll reports the current repeat-all setting.
func (s *Scheduler) RepeatAll() bool {
	return s.repeatAll.Load()
}

// State returns the current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns a copy of the progress counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Err returns the injection failure that ended the last run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start resets execution state of the source's lists and begins replaying
// them on a new goroutine. Each full cycle plays the lists src holds at its
// start, in ascending sequence order.
func (s *Scheduler) Start(ctx context.Context, src Source) error {
	lists := src.Sorted()
	if len(lists) == 0 {
		return ErrNoLists
	}

	s.mu.Lock()
	if s.State() != Stopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	release, err := s.token.TryAcquire(TokenOwner)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	for _, l := range lists {
		l.ResetExecution()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.err = nil
	s.stats = Stats{StartedAt: s.clock.Now()}
	done := s.done
	s.state.Store(int32(Running))
	s.mu.Unlock()

	s.notify(Running)
	log.Info().Int("lists", len(lists)).Bool("repeat_all", s.RepeatAll()).Msg("Replay started")

	go s.run(runCtx, src, lists, release, done)
	return nil
}

// Stop cancels the active run. Pending delays and pauses are interrupted
// immediately; an action already being injected completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the active run, if any, has finished.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause suspends a running replay before its next action.
func (s *Scheduler) Pause() bool {
	if s.state.CompareAndSwap(int32(Running), int32(Paused)) {
		s.notify(Paused)
		log.Info().Msg("Replay paused")
		return true
	}
	return false
}

// Resume continues a paused replay.
func (s *Scheduler) Resume() bool {
	if s.state.CompareAndSwap(int32(Paused), int32(Running)) {
		s.notify(Running)
		log.Info().Msg("Replay resumed")
		return true
	}
	return false
}

// TogglePause flips between Running and Paused and returns the new state.
func (s *Scheduler) TogglePause() State {
	if !s.Pause() {
		s.Resume()
	}
	return s.State()
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	s.notify(st)
}

func (s *Scheduler) notify(st State) {
	metrics.SetReplayState(int(st))
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *Scheduler) run(ctx context.Context, src Source, first []*actions.List, release func(), done chan struct{}) {
	started := s.clock.Now()
	err := s.cycles(ctx, src, first)

	status := StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = StatusStopped
		err = nil
	default:
		status = StatusFailed
		log.Error().Err(err).Msg("Replay aborted")
	}

	s.mu.Lock()
	s.err = err
	s.cancel = nil
	stats := s.stats
	s.mu.Unlock()

	release()
	defer close(done)

	finished := s.clock.Now()
	metrics.RecordRun("replay", status, finished.Sub(started))
	log.Info().
		Str("status", status).
		Int("full_cycles", stats.FullCycles).
		Msg("Replay finished")

	if s.onFinish != nil {
		s.onFinish(Result{Status: status, Err: err, Stats: stats, StartedAt: started, FinishedAt: finished})
	}
	s.setState(Stopped)
}

func (s *Scheduler) cycles(ctx context.Context, src Source, lists []*actions.List) error {
	for first := true; ; first = false {
		if !first {
			lists = src.Sorted()
		}
		ran := false
		for _, l := range lists {
			if err := ctx.Err(); err != nil {
				return err
			}
			played, err := s.playList(ctx, l)
			if err != nil {
				return err
			}
			ran = ran || played
		}

		s.mu.Lock()
		s.stats.FullCycles++
		cycles := s.stats.FullCycles
		s.mu.Unlock()
		metrics.RecordFullCycle()
		log.Debug().Int("full_cycles", cycles).Msg("Full cycle completed")

		if !s.RepeatAll() {
			return nil
		}
		if !ran {
			// Nothing was eligible; avoid spinning until an interval elapses.
			if err := player.Wait(ctx, s.pausePoll); err != nil {
				return err
			}
		}
	}
}

// playList runs the repeat loop of l and reports whether it was eligible.
func (s *Scheduler) playList(ctx context.Context, l *actions.List) (bool, error) {
	pol := l.Policy()
	if !pol.Active {
		return false, nil
	}
	if !l.Eligible(s.clock.Now()) {
		log.Debug().
			Str("list", pol.Name).
			Int("interval", pol.Interval).
			Time("last_executed", l.LastExecuted()).
			Msg("Skipping list, interval not elapsed")
		metrics.RecordListSkipped()
		return false, nil
	}

	log.Debug().Str("list", pol.Name).Int("repeat", pol.Repeat).Msg("Playing list")

	hooks := player.Hooks{
		BeforeAction: s.waitWhilePaused,
		AfterAction: func(i int, _ actions.Action) {
			s.mu.Lock()
			s.stats.ActionIndex = i
			s.mu.Unlock()
		},
	}

	for n := 0; pol.Repeat == 0 || n < pol.Repeat; n++ {
		s.mu.Lock()
		s.stats.CurrentList = pol.Name
		s.stats.RepeatCount = n + 1
		s.stats.ActionIndex = 0
		s.mu.Unlock()

		acts := l.Snapshot()
		if len(acts) == 0 {
			if pol.Repeat != 0 {
				break
			}
			if err := player.Wait(ctx, s.pausePoll); err != nil {
				return true, err
			}
			continue
		}
		if err := s.player.Play(ctx, acts, hooks); err != nil {
			return true, err
		}
	}

	l.MarkExecuted(s.clock.Now())
	return true, nil
}

func (s *Scheduler) waitWhilePaused(ctx context.Context, _ int) error {
	for s.State() == Paused {
		if err := player.Wait(ctx, s.pausePoll); err != nil {
			return err
		}
	}
	return ctx.Err()
}
