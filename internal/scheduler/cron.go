package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronParser wraps robfig/cron for parsing cron expressions.
type CronParser struct {
	parser cron.Parser
}

// NewCronParser creates a new cron parser with standard options.
func NewCronParser() *CronParser {
	return &CronParser{
		parser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// Parse parses a cron expression and returns a schedule.
func (p *CronParser) Parse(expression string) (cron.Schedule, error) {
	schedule, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression: %w", err)
	}
	return schedule, nil
}

// NextRun returns the first scheduled instant strictly after after, in
// after's location.
func (p *CronParser) NextRun(expression string, after time.Time) (time.Time, error) {
	schedule, err := p.Parse(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}

// MostRecent returns the latest scheduled instant in (now-window, now], or
// false if none falls in that range.
func (p *CronParser) MostRecent(expression string, now time.Time, window time.Duration) (time.Time, bool, error) {
	schedule, err := p.Parse(expression)
	if err != nil {
		return time.Time{}, false, err
	}

	var found time.Time
	for next := schedule.Next(now.Add(-window)); !next.After(now); next = schedule.Next(next) {
		found = next
	}
	return found, !found.IsZero(), nil
}
