package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Recover fires jobs whose most recent scheduled minute fell within the
// catch-up window before now and was never recorded as fired, for example
// because the process was down. Each job fires at most once.
func (s *Scheduler) Recover(ctx context.Context, now time.Time) []CronJob {
	window := s.cfg.CatchupWindow
	if window <= 0 {
		return nil
	}

	log.Info().
		Int("jobs", s.table.Len()).
		Dur("window", window).
		Msg("Recovering missed cron fires")

	fired := s.fireDue(now, window)
	for _, job := range fired {
		log.Info().
			Str("job", job.Name).
			Str("time", job.Time.String()).
			Msg("Caught up missed cron fire")
	}
	return fired
}
