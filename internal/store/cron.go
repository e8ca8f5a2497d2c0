package store

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/scheduler"
)

// cronRecord is the wire shape of one cron job. CronExpression is derived
// from Time on export; Time is what the scheduler consults.
type cronRecord struct {
	Name           string  `json:"name" yaml:"name"`
	Actions        [][]any `json:"actions" yaml:"actions"`
	CronExpression string  `json:"cron_expression" yaml:"cron_expression"`
	Time           string  `json:"time" yaml:"time"`
	Active         bool    `json:"active" yaml:"active"`
	LastExecuted   string  `json:"last_executed" yaml:"last_executed"`
}

// DecodeCronJobs decodes a cron-job file. Name and actions are required;
// time defaults to 12:00 AM, active to true and last_executed to "-".
func DecodeCronJobs(data []byte) ([]*scheduler.CronJob, error) {
	objs, single, err := splitDocument(data)
	if err != nil {
		return nil, err
	}
	if single {
		return nil, formatErr("expected a list of cron jobs", nil)
	}

	jobs := make([]*scheduler.CronJob, 0, len(objs))
	for i, obj := range objs {
		job, err := decodeCronJob(obj)
		if err != nil {
			return nil, entryErr(i, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func decodeCronJob(obj object) (*scheduler.CronJob, error) {
	if err := obj.require("name", "actions"); err != nil {
		return nil, err
	}

	rec := cronRecord{Time: scheduler.DefaultTime, Active: true, LastExecuted: scheduler.NeverExecuted}
	if err := obj.decode("name", &rec.Name); err != nil {
		return nil, err
	}
	if rec.Name == "" {
		return nil, formatErr("name must not be empty", nil)
	}
	for key, dst := range map[string]any{
		"time":            &rec.Time,
		"active":          &rec.Active,
		"last_executed":   &rec.LastExecuted,
		"cron_expression": &rec.CronExpression,
	} {
		if err := obj.optional(key, dst); err != nil {
			return nil, err
		}
	}

	acts, err := obj.actions()
	if err != nil {
		return nil, err
	}
	for i, a := range acts {
		if err := a.Validate(); err != nil {
			return nil, formatErr(fmt.Sprintf("action %d", i), err)
		}
	}

	tod, err := scheduler.ParseTimeOfDay(rec.Time)
	if err != nil {
		return nil, formatErr("invalid time", err)
	}
	last, err := scheduler.ParseLastExecuted(rec.LastExecuted)
	if err != nil {
		return nil, formatErr("invalid last_executed", err)
	}

	if rec.CronExpression != "" && rec.CronExpression != scheduler.CronExpression(tod) {
		log.Debug().
			Str("job", rec.Name).
			Str("cron_expression", rec.CronExpression).
			Str("time", rec.Time).
			Msg("Ignoring cron_expression that disagrees with time")
	}

	return &scheduler.CronJob{
		Name:         rec.Name,
		Actions:      acts,
		Time:         tod,
		Active:       rec.Active,
		LastExecuted: last,
	}, nil
}

// EncodeCronJobs renders jobs as a cron-job file.
func EncodeCronJobs(jobs []scheduler.CronJob, format Format) ([]byte, error) {
	records := make([]cronRecord, len(jobs))
	for i, j := range jobs {
		records[i] = cronRecord{
			Name:           j.Name,
			Actions:        wireActions(j.Actions),
			CronExpression: j.Expression(),
			Time:           j.Time.String(),
			Active:         j.Active,
			LastExecuted:   j.LastExecutedString(),
		}
	}
	return encode(records, format)
}

// LoadCronJobs reads a cron-job file.
func LoadCronJobs(path string) ([]*scheduler.CronJob, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	jobs, err := DecodeCronJobs(data)
	if err != nil {
		return nil, withPath(err, path)
	}
	return jobs, nil
}

// SaveCronJobs writes a cron-job file in the format implied by path.
func SaveCronJobs(path string, jobs []scheduler.CronJob) error {
	data, err := EncodeCronJobs(jobs, FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("saving cron jobs: %w", err)
	}
	return nil
}
