package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/scheduler"
	"github.com/watzon/clickloop/internal/store"
)

// ImportReplay replaces the replay set with the lists in path. A malformed
// file leaves the set untouched.
func (e *Engine) ImportReplay(path string) error {
	lists, err := store.LoadLists(path)
	if err != nil {
		return err
	}
	e.lists.Replace(lists)
	log.Info().Str("path", path).Int("lists", len(lists)).Msg("Replay lists imported")
	e.emitLists()
	return nil
}

// CombineReplay appends the lists in path to the replay set.
func (e *Engine) CombineReplay(path string) error {
	lists, err := store.LoadLists(path)
	if err != nil {
		return err
	}
	e.lists.Combine(lists)
	log.Info().Str("path", path).Int("lists", len(lists)).Msg("Replay lists combined")
	e.emitLists()
	return nil
}

// ExportReplay writes the replay set to path.
func (e *Engine) ExportReplay(path string) error {
	return store.SaveLists(path, e.lists.Lists())
}

// ImportList loads a single list file into the editor.
func (e *Engine) ImportList(path string) error {
	l, err := store.LoadList(path)
	if err != nil {
		return err
	}
	e.SetCurrent(l)
	return nil
}

// ExportList writes the editor list to path.
func (e *Engine) ExportList(path string) error {
	l := e.Current()
	if l == nil {
		return ErrNoCurrentList
	}
	if l.Len() == 0 {
		return ErrNothingToPlay
	}
	return store.SaveList(path, l)
}

// ImportCron replaces the cron table with the jobs in path.
func (e *Engine) ImportCron(path string) error {
	jobs, err := store.LoadCronJobs(path)
	if err != nil {
		return err
	}
	e.jobs.Replace(jobs)
	log.Info().Str("path", path).Int("jobs", len(jobs)).Msg("Cron jobs imported")
	e.emitJobs()
	return nil
}

// ExportCron writes the cron table to path.
func (e *Engine) ExportCron(path string) error {
	return store.SaveCronJobs(path, e.jobs.Jobs())
}

// CronJobs returns copies of the cron jobs in time order.
func (e *Engine) CronJobs() []scheduler.CronJob {
	return e.jobs.Jobs()
}
