package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/watzon/clickloop/internal/actions"
)

const (
	// TimeLayout is the 12-hour clock format of job times.
	TimeLayout = "03:04 PM"
	// LastExecutedLayout formats CronJob.LastExecuted for display and files.
	LastExecutedLayout = "2006-01-02 15:04:05"
	// NeverExecuted is shown for a job that has not fired yet.
	NeverExecuted = "-"
	// DefaultTime is used when an imported job has no time.
	DefaultTime = "12:00 AM"
)

// TimeOfDay is an hour and minute on a 24-hour clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 12-hour clock string such as "9:05 am" or
// "09:05 PM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("3:04 PM", strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return TimeOfDay{}, &actions.ValidationError{
			Field:   "time",
			Message: fmt.Sprintf("%q is not a HH:MM AM/PM time", s),
		}
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Validate checks that t is a real time of day.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return &actions.ValidationError{
			Field:   "time",
			Message: fmt.Sprintf("%02d:%02d is out of range", t.Hour, t.Minute),
		}
	}
	return nil
}

// String renders the time as "HH:MM AM".
func (t TimeOfDay) String() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format(TimeLayout)
}

// Matches reports whether now falls in this minute of the day.
func (t TimeOfDay) Matches(now time.Time) bool {
	return now.Hour() == t.Hour && now.Minute() == t.Minute
}

// CronExpression returns the daily five-field expression for t.
func CronExpression(t TimeOfDay) string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// CronJob is a list of actions bound to a time of day.
type CronJob struct {
	ID           string
	Name         string
	Actions      []actions.Action
	Time         TimeOfDay
	Active       bool
	LastExecuted time.Time
}

// NewJob snapshots l's actions into an active job firing at timeStr.
func NewJob(name string, l *actions.List, timeStr string) (*CronJob, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &actions.ValidationError{Field: "name", Message: "must not be empty"}
	}
	tod, err := ParseTimeOfDay(timeStr)
	if err != nil {
		return nil, err
	}
	return &CronJob{
		ID:      uuid.New().String(),
		Name:    name,
		Actions: l.Snapshot(),
		Time:    tod,
		Active:  true,
	}, nil
}

// Expression returns the job's cron expression.
func (j *CronJob) Expression() string {
	return CronExpression(j.Time)
}

// Key is the job's name and expression. Jobs sharing a key are told apart by
// stateKeys.
func (j *CronJob) Key() string {
	return j.Name + "|" + j.Expression()
}

// stateKeys maps each job ID to the key its fires are persisted under. The
// first job with a given Key uses it as is; later ones get "#<n>" appended,
// n counting jobs with that key in table order.
func stateKeys(jobs []*CronJob) map[string]string {
	keys := make(map[string]string, len(jobs))
	seen := make(map[string]int, len(jobs))
	for _, j := range jobs {
		k := j.Key()
		if n := seen[k]; n > 0 {
			keys[j.ID] = fmt.Sprintf("%s#%d", k, n)
		} else {
			keys[j.ID] = k
		}
		seen[k]++
	}
	return keys
}

// LastExecutedString formats LastExecuted, or "-" if never.
func (j *CronJob) LastExecutedString() string {
	return FormatLastExecuted(j.LastExecuted)
}

func (j *CronJob) clone() *CronJob {
	c := *j
	c.Actions = append([]actions.Action(nil), j.Actions...)
	return &c
}

// FormatLastExecuted renders t in LastExecutedLayout, or "-" if zero.
func FormatLastExecuted(t time.Time) string {
	if t.IsZero() {
		return NeverExecuted
	}
	return t.Format(LastExecutedLayout)
}

// ParseLastExecuted is the inverse of FormatLastExecuted, in local time.
func ParseLastExecuted(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == NeverExecuted {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(LastExecutedLayout, s, time.Local)
	if err != nil {
		return time.Time{}, &actions.ValidationError{
			Field:   "last_executed",
			Message: fmt.Sprintf("%q is not a %s timestamp", s, LastExecutedLayout),
		}
	}
	return t, nil
}
