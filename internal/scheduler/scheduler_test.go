package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/player"
)

type countingInjector struct {
	mu     sync.Mutex
	clicks []int
}

func (c *countingInjector) InjectClick(x, y int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, x)
	return nil
}

func (c *countingInjector) InjectKeyPress(string) error { return nil }
func (c *countingInjector) InjectText(string) error     { return nil }

func (c *countingInjector) Clicks() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.clicks...)
}

type fireLog struct {
	mu      sync.Mutex
	results map[string][]string
}

func (f *fireLog) record(job CronJob, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string][]string)
	}
	f.results[job.Name] = append(f.results[job.Name], result)
}

func (f *fireLog) get(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.results[name]...)
}

func clickJob(t *testing.T, name, at string, x int) *CronJob {
	t.Helper()
	l := actions.NewList(name)
	l.Append(actions.Click(x, 0, 0))
	job, err := NewJob(name, l, at)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job
}

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, second, 0, time.Local)
}

type harness struct {
	sched *Scheduler
	inj   *countingInjector
	token *player.Token
	fires *fireLog
}

func newHarness(t *testing.T, cfg Config, jobs ...*CronJob) *harness {
	t.Helper()
	h := &harness{
		inj:   &countingInjector{},
		token: player.NewToken(),
		fires: &fireLog{},
	}
	cfg.OnFire = h.fires.record
	h.sched = NewScheduler(NewTable(jobs...), player.New(h.inj), h.token, cfg)
	t.Cleanup(h.sched.Stop)
	return h
}

func TestScheduler_FiresOncePerMinute(t *testing.T) {
	h := newHarness(t, Config{}, clickJob(t, "morning", "09:00 AM", 1))

	if fired := h.sched.Tick(at(8, 59, 59)); len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	if fired := h.sched.Tick(at(9, 0, 0)); len(fired) != 1 {
		t.Fatalf("Tick(09:00:00) fired %d jobs, want 1", len(fired))
	}
	for _, now := range []time.Time{at(9, 0, 0), at(9, 0, 30), at(9, 0, 59), at(9, 1, 0)} {
		if fired := h.sched.Tick(now); len(fired) != 0 {
			t.Errorf("Tick(%s) fired again", now.Format(time.TimeOnly))
		}
	}
	h.sched.Wait()

	if got := h.inj.Clicks(); len(got) != 1 {
		t.Fatalf("clicks = %v, want one", got)
	}
	job, _ := h.sched.Table().Get(0)
	if !job.LastExecuted.Equal(at(9, 0, 0)) {
		t.Errorf("LastExecuted = %v, want 09:00:00", job.LastExecuted)
	}
	if got := h.fires.get("morning"); len(got) != 1 || got[0] != ResultFired {
		t.Errorf("fire results = %v", got)
	}
}

func TestScheduler_FiresAgainNextDay(t *testing.T) {
	h := newHarness(t, Config{}, clickJob(t, "morning", "09:00 AM", 1))

	h.sched.Tick(at(9, 0, 0))
	h.sched.Wait()
	if fired := h.sched.Tick(at(9, 0, 0).AddDate(0, 0, 1)); len(fired) != 1 {
		t.Fatalf("next day fired %d jobs, want 1", len(fired))
	}
	h.sched.Wait()
	if got := h.inj.Clicks(); len(got) != 2 {
		t.Errorf("clicks = %v, want two", got)
	}
}

func TestScheduler_CatchupWithinMinute(t *testing.T) {
	h := newHarness(t, Config{Catchup: true}, clickJob(t, "morning", "09:00 AM", 1))

	if fired := h.sched.Tick(at(9, 0, 30)); len(fired) != 1 {
		t.Fatalf("Tick(09:00:30) fired %d jobs, want 1", len(fired))
	}
	if fired := h.sched.Tick(at(9, 0, 59)); len(fired) != 0 {
		t.Error("fired twice within the minute")
	}
	h.sched.Wait()
	if got := h.inj.Clicks(); len(got) != 1 {
		t.Errorf("clicks = %v", got)
	}
}

func TestScheduler_SameMinuteJobsBothFire(t *testing.T) {
	h := newHarness(t, Config{},
		clickJob(t, "first", "12:00 PM", 1),
		clickJob(t, "second", "12:00 PM", 2),
	)

	if fired := h.sched.Tick(at(12, 0, 0)); len(fired) != 2 {
		t.Fatalf("fired %d jobs, want 2", len(fired))
	}
	h.sched.Wait()

	got := h.inj.Clicks()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("clicks = %v, want [1 2]", got)
	}
}

func TestScheduler_SameNameAndTimeBothFireWithState(t *testing.T) {
	state := NewStateStore(testDB(t))
	h := newHarness(t, Config{State: state},
		clickJob(t, "Recording_1", "12:00 PM", 1),
		clickJob(t, "Recording_1", "12:00 PM", 2),
	)

	if fired := h.sched.Tick(at(12, 0, 0)); len(fired) != 2 {
		t.Fatalf("fired %d jobs, want 2", len(fired))
	}
	h.sched.Wait()

	got := h.inj.Clicks()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("clicks = %v, want [1 2]", got)
	}

	// Reloaded from file: both minutes are already recorded.
	again := newHarness(t, Config{State: state},
		clickJob(t, "Recording_1", "12:00 PM", 1),
		clickJob(t, "Recording_1", "12:00 PM", 2),
	)
	if fired := again.sched.Tick(at(12, 0, 0)); len(fired) != 0 {
		t.Fatalf("reloaded scheduler fired %d jobs, want 0", len(fired))
	}
}

func TestStateKeys_DisambiguatesDuplicates(t *testing.T) {
	a := clickJob(t, "job", "09:00 AM", 1)
	b := clickJob(t, "job", "09:00 AM", 2)
	c := clickJob(t, "other", "09:00 AM", 3)

	keys := stateKeys([]*CronJob{a, b, c})
	if keys[a.ID] != "job|0 9 * * *" {
		t.Errorf("first key = %q", keys[a.ID])
	}
	if keys[b.ID] != "job|0 9 * * *#1" {
		t.Errorf("second key = %q", keys[b.ID])
	}
	if keys[c.ID] != "other|0 9 * * *" {
		t.Errorf("other key = %q", keys[c.ID])
	}
}

func TestScheduler_InactiveNeverFires(t *testing.T) {
	job := clickJob(t, "off", "09:00 AM", 1)
	job.Active = false
	h := newHarness(t, Config{Catchup: true}, job)

	for s := 0; s < 60; s += 15 {
		if fired := h.sched.Tick(at(9, 0, s)); len(fired) != 0 {
			t.Fatal("inactive job fired")
		}
	}
	h.sched.Wait()
	if len(h.inj.Clicks()) != 0 {
		t.Error("inactive job injected input")
	}
}

func TestScheduler_BusySkipIsRecorded(t *testing.T) {
	db := testDB(t)
	logger := history.NewLogger(db, 0)
	h := newHarness(t, Config{History: logger}, clickJob(t, "morning", "09:00 AM", 1))

	release, err := h.token.TryAcquire("replay")
	if err != nil {
		t.Fatalf("TryAcquire() error = %v", err)
	}
	defer release()

	h.sched.Tick(at(9, 0, 0))
	h.sched.Wait()

	if len(h.inj.Clicks()) != 0 {
		t.Error("skipped job injected input")
	}
	if got := h.fires.get("morning"); len(got) != 1 || got[0] != ResultSkipped {
		t.Errorf("fire results = %v, want [skipped]", got)
	}

	runs, err := logger.Store().List(context.Background(), history.Filter{Status: history.StatusSkipped})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "morning" || runs[0].Source != history.SourceCron {
		t.Errorf("skipped runs = %+v", runs)
	}
}

func TestScheduler_BusyWaitPlaysAfterRelease(t *testing.T) {
	h := newHarness(t, Config{OnBusy: OnBusyWait}, clickJob(t, "morning", "09:00 AM", 1))

	release, err := h.token.TryAcquire("replay")
	if err != nil {
		t.Fatalf("TryAcquire() error = %v", err)
	}

	h.sched.Tick(at(9, 0, 0))
	time.Sleep(20 * time.Millisecond)
	if len(h.inj.Clicks()) != 0 {
		t.Fatal("played while the token was held")
	}

	release()
	h.sched.Wait()
	if len(h.inj.Clicks()) != 1 {
		t.Errorf("clicks = %v, want one", h.inj.Clicks())
	}
}

func TestScheduler_RestartDoesNotDoubleFire(t *testing.T) {
	state := NewStateStore(testDB(t))

	first := newHarness(t, Config{State: state, Catchup: true}, clickJob(t, "morning", "09:00 AM", 1))
	first.sched.Tick(at(9, 0, 5))
	first.sched.Wait()

	// Same job loaded from file again: new ID, same name and time.
	second := newHarness(t, Config{State: state, Catchup: true, CatchupWindow: time.Hour}, clickJob(t, "morning", "09:00 AM", 1))
	if fired := second.sched.Tick(at(9, 0, 20)); len(fired) != 0 {
		t.Fatal("restarted scheduler fired the same minute again")
	}
	if fired := second.sched.Recover(context.Background(), at(9, 0, 20)); len(fired) != 0 {
		t.Fatal("recovery fired an already fired minute")
	}
}

func TestScheduler_RecoverMissedFire(t *testing.T) {
	h := newHarness(t, Config{CatchupWindow: time.Hour}, clickJob(t, "morning", "09:00 AM", 1))

	fired := h.sched.Recover(context.Background(), at(9, 30, 0))
	if len(fired) != 1 {
		t.Fatalf("Recover() fired %d jobs, want 1", len(fired))
	}
	if fired := h.sched.Recover(context.Background(), at(9, 31, 0)); len(fired) != 0 {
		t.Error("Recover() fired twice")
	}
	h.sched.Wait()
	if len(h.inj.Clicks()) != 1 {
		t.Errorf("clicks = %v", h.inj.Clicks())
	}

	outside := newHarness(t, Config{CatchupWindow: 10 * time.Minute}, clickJob(t, "morning", "09:00 AM", 1))
	if fired := outside.sched.Recover(context.Background(), at(9, 30, 0)); len(fired) != 0 {
		t.Error("Recover() fired outside its window")
	}
}

func TestScheduler_ExecutionDisabled(t *testing.T) {
	h := newHarness(t, Config{DisableExecution: true}, clickJob(t, "morning", "09:00 AM", 1))

	if fired := h.sched.Tick(at(9, 0, 0)); len(fired) != 1 {
		t.Fatalf("due job not reported")
	}
	h.sched.Wait()
	if len(h.inj.Clicks()) != 0 {
		t.Error("disabled scheduler injected input")
	}
	if got := h.fires.get("morning"); len(got) != 1 || got[0] != ResultDisabled {
		t.Errorf("fire results = %v", got)
	}

	job, _ := h.sched.Table().Get(0)
	if err := h.sched.PlayOnce(context.Background(), job); !errors.Is(err, ErrExecutionDisabled) {
		t.Errorf("PlayOnce() error = %v, want ErrExecutionDisabled", err)
	}

	h.sched.SetExecute(true)
	if !h.sched.Executing() {
		t.Error("Executing() = false after SetExecute(true)")
	}
}

func TestScheduler_PlayOnce(t *testing.T) {
	h := newHarness(t, Config{}, clickJob(t, "morning", "09:00 AM", 7))
	job, _ := h.sched.Table().Get(0)

	if err := h.sched.PlayOnce(context.Background(), job); err != nil {
		t.Fatalf("PlayOnce() error = %v", err)
	}
	if got := h.inj.Clicks(); len(got) != 1 || got[0] != 7 {
		t.Errorf("clicks = %v", got)
	}

	after, _ := h.sched.Table().Get(0)
	if !after.LastExecuted.IsZero() {
		t.Error("PlayOnce() set LastExecuted")
	}

	release, _ := h.token.TryAcquire("replay")
	defer release()
	if err := h.sched.PlayOnce(context.Background(), job); !errors.Is(err, player.ErrBusy) {
		t.Errorf("PlayOnce() while busy error = %v, want ErrBusy", err)
	}
}

func TestScheduler_StopPlayback(t *testing.T) {
	l := actions.NewList("slow")
	l.Append(actions.Click(1, 0, time.Hour))
	job, err := NewJob("slow", l, "09:00 AM")
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	h := newHarness(t, Config{})

	done := make(chan error, 1)
	go func() { done <- h.sched.PlayOnce(context.Background(), *job) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.sched.Playing() == "" {
		if time.Now().After(deadline) {
			t.Fatal("job never started playing")
		}
		time.Sleep(time.Millisecond)
	}
	if h.sched.Playing() != "slow" {
		t.Errorf("Playing() = %q", h.sched.Playing())
	}

	if !h.sched.StopPlayback() {
		t.Fatal("StopPlayback() = false")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("PlayOnce() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PlayOnce() did not return after StopPlayback")
	}

	if got := h.fires.get("slow"); len(got) != 1 || got[0] != ResultStopped {
		t.Errorf("fire results = %v, want [stopped]", got)
	}
	if h.sched.StopPlayback() {
		t.Error("StopPlayback() = true with nothing playing")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t, Config{Tick: 10 * time.Millisecond})
	h.sched.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
}
