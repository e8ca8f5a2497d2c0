package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/clock"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/metrics"
	"github.com/watzon/clickloop/internal/player"
)

// ErrExecutionDisabled is returned by PlayOnce while execution is off.
var ErrExecutionDisabled = errors.New("cron job execution is disabled")

// Busy policies.
const (
	OnBusySkip = "skip"
	OnBusyWait = "wait"
)

// Fire results passed to Config.OnFire and recorded in metrics.
const (
	ResultFired    = "fired"
	ResultFailed   = "failed"
	ResultStopped  = "stopped"
	ResultSkipped  = "skipped"
	ResultDisabled = "disabled"
)

// TokenOwner identifies cron playback as run token holder.
const TokenOwner = "cron"

// Config holds configuration for Scheduler.
type Config struct {
	// Tick is how often the clock is checked (default: 1 second).
	Tick time.Duration
	// Catchup fires a job whose tick arrived late within its minute.
	Catchup bool
	// CatchupWindow bounds startup recovery of a missed fire.
	CatchupWindow time.Duration
	// OnBusy is OnBusySkip (default) or OnBusyWait.
	OnBusy string
	// DisableExecution turns due fires into log entries.
	DisableExecution bool
	Clock            clock.Clock
	// State, when set, persists fired minutes across restarts.
	State *StateStore
	// History, when set, records each fire.
	History *history.Logger
	// OnFire is called once per job fire attempt with its result.
	OnFire func(job CronJob, result string)
}

// Scheduler fires cron jobs at their time of day. Jobs due on the same tick
// run one after another under a single hold of the run token.
type Scheduler struct {
	table  *Table
	player *player.Player
	token  *player.Token
	parser *CronParser
	cfg    Config

	disabled atomic.Bool

	mu         sync.Mutex
	lastFired  map[string]time.Time // job ID -> fired minute
	playCancel context.CancelFunc
	playing    string

	ctx    context.Context
	cancel context.CancelFunc
	loopWg sync.WaitGroup
	fireWg sync.WaitGroup
}

// NewScheduler creates a new scheduler over table.
func NewScheduler(table *Table, p *player.Player, token *player.Token, cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.OnBusy == "" {
		cfg.OnBusy = OnBusySkip
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		table:     table,
		player:    p,
		token:     token,
		parser:    NewCronParser(),
		cfg:       cfg,
		lastFired: make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.disabled.Store(cfg.DisableExecution)
	return s
}

// Table returns the job table.
func (s *Scheduler) Table() *Table {
	return s.table
}

// SetExecute enables or disables playing due jobs.
func (s *Scheduler) SetExecute(on bool) {
	s.disabled.Store(!on)
}

// Executing reports whether due jobs are played.
func (s *Scheduler) Executing() bool {
	return !s.disabled.Load()
}

// Start runs startup recovery, then ticks until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Catchup {
		s.Recover(ctx, s.cfg.Clock.Now())
	}

	s.loopWg.Add(1)
	go s.pollLoop(ctx)

	log.Info().
		Dur("tick", s.cfg.Tick).
		Bool("catchup", s.cfg.Catchup).
		Str("on_busy", s.cfg.OnBusy).
		Int("jobs", s.table.Len()).
		Msg("Cron scheduler started")
}

// Stop cancels playback and waits for in-flight fires.
func (s *Scheduler) Stop() {
	s.cancel()
	s.loopWg.Wait()
	s.fireWg.Wait()
	log.Info().Msg("Cron scheduler stopped")
}

// Wait blocks until every fire started so far has finished.
func (s *Scheduler) Wait() {
	s.fireWg.Wait()
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.loopWg.Done()

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.cfg.Clock.Now())
		}
	}
}

// Tick fires every active job due at now and returns them. In strict mode a
// job is due only when now is the zeroth second of its minute; with catch-up
// any second of that minute qualifies. A job fires at most once per minute.
func (s *Scheduler) Tick(now time.Time) []CronJob {
	window := time.Duration(0)
	if s.cfg.Catchup {
		window = time.Minute
	}
	return s.fireDue(now, window)
}

func (s *Scheduler) fireDue(now time.Time, window time.Duration) []CronJob {
	var due []*CronJob
	jobs := s.table.snapshot()
	keys := stateKeys(jobs)
	for _, job := range jobs {
		if !job.Active {
			continue
		}
		minute, ok := s.dueMinute(job, now, window)
		if !ok || s.alreadyFired(job, keys[job.ID], minute) {
			continue
		}
		s.recordFired(job, keys[job.ID], minute)
		due = append(due, job)
	}
	if len(due) == 0 {
		return nil
	}

	out := make([]CronJob, len(due))
	for i, j := range due {
		out[i] = *j.clone()
	}

	if s.disabled.Load() {
		for _, job := range due {
			log.Info().Str("job", job.Name).Msg("Cron job due, execution disabled")
			s.report(job, ResultDisabled)
		}
		return out
	}

	for _, job := range due {
		s.table.markExecuted(job.ID, now)
	}
	s.dispatch(due)
	return out
}

// dueMinute returns the scheduled minute job is due for at now.
func (s *Scheduler) dueMinute(job *CronJob, now time.Time, window time.Duration) (time.Time, bool) {
	if window <= 0 {
		if job.Time.Matches(now) && now.Second() == 0 {
			return now.Truncate(time.Minute), true
		}
		return time.Time{}, false
	}

	instant, ok, err := s.parser.MostRecent(job.Expression(), now, window)
	if err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Invalid cron expression")
		return time.Time{}, false
	}
	return instant, ok
}

func (s *Scheduler) alreadyFired(job *CronJob, key string, minute time.Time) bool {
	s.mu.Lock()
	last, ok := s.lastFired[job.ID]
	s.mu.Unlock()
	if ok {
		return !last.Before(minute)
	}

	if s.cfg.State == nil {
		return false
	}
	state, err := s.cfg.State.Get(s.ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("job", job.Name).Msg("Failed to read cron state")
		return false
	}
	if state == nil {
		return false
	}

	s.mu.Lock()
	s.lastFired[job.ID] = state.LastFiredMinute
	s.mu.Unlock()
	return !state.LastFiredMinute.Before(minute)
}

func (s *Scheduler) recordFired(job *CronJob, key string, minute time.Time) {
	s.mu.Lock()
	s.lastFired[job.ID] = minute
	s.mu.Unlock()

	if s.cfg.State == nil {
		return
	}
	if err := s.cfg.State.MarkFired(s.ctx, key, minute); err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Failed to persist cron state")
	}
}

func (s *Scheduler) dispatch(jobs []*CronJob) {
	if s.cfg.OnBusy == OnBusyWait {
		s.fireWg.Add(1)
		go func() {
			defer s.fireWg.Done()
			release, err := s.token.Acquire(s.ctx, TokenOwner)
			if err != nil {
				for _, job := range jobs {
					s.report(job, ResultStopped)
				}
				return
			}
			defer release()
			s.playBatch(jobs)
		}()
		return
	}

	release, err := s.token.TryAcquire(TokenOwner)
	if err != nil {
		for _, job := range jobs {
			log.Warn().Err(err).Str("job", job.Name).Msg("Skipping cron job, another replay is running")
			s.recordSkip(job, err)
			s.report(job, ResultSkipped)
		}
		return
	}

	s.fireWg.Add(1)
	go func() {
		defer s.fireWg.Done()
		defer release()
		s.playBatch(jobs)
	}()
}

func (s *Scheduler) playBatch(jobs []*CronJob) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	for _, job := range jobs {
		if ctx.Err() != nil {
			s.report(job, ResultStopped)
			continue
		}
		result, _ := s.play(ctx, cancel, job)
		s.report(job, result)
	}
}

// play runs one job and returns its result along with the failure, if any.
func (s *Scheduler) play(ctx context.Context, cancel context.CancelFunc, job *CronJob) (string, error) {
	s.mu.Lock()
	s.playCancel = cancel
	s.playing = job.Name
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.playCancel = nil
		s.playing = ""
		s.mu.Unlock()
	}()

	log.Info().Str("job", job.Name).Str("time", job.Time.String()).Msg("Playing cron job")

	run := s.cfg.History.Begin(ctx, history.SourceCron, job.Name)
	run.Actions = len(job.Actions)
	started := time.Now()
	err := s.player.Play(ctx, job.Actions, player.Hooks{})

	result, status := ResultFired, history.StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		result, status, err = ResultStopped, history.StatusStopped, nil
	default:
		result, status = ResultFailed, history.StatusFailed
		log.Error().Err(err).Str("job", job.Name).Msg("Cron job failed")
	}

	s.cfg.History.Finish(context.Background(), run, status, err)
	metrics.RecordRun("cron", string(status), time.Since(started))
	return result, err
}

func (s *Scheduler) recordSkip(job *CronJob, cause error) {
	now := time.Now()
	run := &history.Run{
		Source:     history.SourceCron,
		Name:       job.Name,
		Status:     history.StatusSkipped,
		Actions:    len(job.Actions),
		Error:      cause.Error(),
		StartedAt:  now,
		FinishedAt: &now,
	}
	if err := s.cfg.History.Record(s.ctx, run); err != nil {
		log.Error().Err(err).Str("job", job.Name).Msg("Failed to record skipped cron job")
	}
}

func (s *Scheduler) report(job *CronJob, result string) {
	metrics.RecordCronFire(result)
	if s.cfg.OnFire != nil {
		s.cfg.OnFire(*job.clone(), result)
	}
}

// PlayOnce plays job immediately regardless of its time, without touching
// its last executed time. It blocks until playback ends.
func (s *Scheduler) PlayOnce(ctx context.Context, job CronJob) error {
	release, err := s.claimOnce(job)
	if err != nil {
		return err
	}
	defer s.fireWg.Done()
	return s.playOnce(ctx, job, release)
}

// StartOnce is PlayOnce on a new goroutine. It returns once the run token is
// held; the outcome goes to Config.OnFire.
func (s *Scheduler) StartOnce(ctx context.Context, job CronJob) error {
	release, err := s.claimOnce(job)
	if err != nil {
		return err
	}
	go func() {
		defer s.fireWg.Done()
		_ = s.playOnce(ctx, job, release)
	}()
	return nil
}

func (s *Scheduler) claimOnce(job CronJob) (func(), error) {
	if s.disabled.Load() {
		return nil, ErrExecutionDisabled
	}
	release, err := s.token.TryAcquire(fmt.Sprintf("%s:%s", TokenOwner, job.Name))
	if err != nil {
		return nil, err
	}
	s.fireWg.Add(1)
	return release, nil
}

func (s *Scheduler) playOnce(ctx context.Context, job CronJob, release func()) error {
	defer release()

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	result, err := s.play(playCtx, cancel, &job)
	s.report(&job, result)
	if err != nil {
		return fmt.Errorf("playing cron job %q: %w", job.Name, err)
	}
	return nil
}

// StopPlayback cancels the cron job currently playing, if any, and any jobs
// queued behind it on the same tick.
func (s *Scheduler) StopPlayback() bool {
	s.mu.Lock()
	cancel := s.playCancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Playing returns the name of the job currently playing, or "".
func (s *Scheduler) Playing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}
