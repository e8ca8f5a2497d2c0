package engine

import (
	"context"

	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/scheduler"
)

// AddToCron binds a snapshot of the editor list to the time of day timeStr.
func (e *Engine) AddToCron(timeStr string) (scheduler.CronJob, error) {
	l := e.Current()
	if l == nil {
		return scheduler.CronJob{}, ErrNoCurrentList
	}
	job, err := scheduler.NewJob(l.Name(), l, timeStr)
	if err != nil {
		return scheduler.CronJob{}, err
	}
	e.jobs.Add(job)
	e.emitJobs()
	return *job, nil
}

// PlayCronJob plays cron job i now on a new goroutine. The outcome is
// published as a cron "fired" event; StopCronJob ends it early.
func (e *Engine) PlayCronJob(ctx context.Context, i int) error {
	job, err := e.jobs.Get(i)
	if err != nil {
		return err
	}
	return e.cron.StartOnce(ctx, job)
}

// WaitCronJobs blocks until every cron job playback started so far ends.
func (e *Engine) WaitCronJobs() {
	e.cron.Wait()
}

// StopCronJob stops the cron job currently playing.
func (e *Engine) StopCronJob() bool {
	return e.cron.StopPlayback()
}

// UpdateCronJob replaces job i.
func (e *Engine) UpdateCronJob(i int, job scheduler.CronJob) error {
	if err := e.jobs.Update(i, job); err != nil {
		return err
	}
	e.emitJobs()
	return nil
}

// DeleteCronJob removes job i.
func (e *Engine) DeleteCronJob(i int) error {
	if err := e.jobs.Remove(i); err != nil {
		return err
	}
	e.emitJobs()
	return nil
}

// DuplicateCronJob appends a copy of job i.
func (e *Engine) DuplicateCronJob(i int) (scheduler.CronJob, error) {
	job, err := e.jobs.Duplicate(i)
	if err != nil {
		return scheduler.CronJob{}, err
	}
	e.emitJobs()
	return job, nil
}

// ToggleCronJob flips the active flag of job i.
func (e *Engine) ToggleCronJob(i int) (bool, error) {
	active, err := e.jobs.ToggleActive(i)
	if err != nil {
		return false, err
	}
	e.emitJobs()
	return active, nil
}

// ClearCronJobs empties the cron table.
func (e *Engine) ClearCronJobs() {
	e.jobs.Clear()
	e.emitJobs()
}

// SetCronExecute enables or disables playing due jobs.
func (e *Engine) SetCronExecute(on bool) {
	e.cron.SetExecute(on)
}

func (e *Engine) onCronFire(job scheduler.CronJob, result string) {
	e.bus.Emit(events.EventTypeCron, job.Name, events.ActionFired, map[string]any{
		"result":        result,
		"time":          job.Time.String(),
		"last_executed": job.LastExecutedString(),
	})
}

func (e *Engine) emitJobs() {
	e.bus.Emit(events.EventTypeCron, "", events.ActionChanged, map[string]int{"jobs": e.jobs.Len()})
}
