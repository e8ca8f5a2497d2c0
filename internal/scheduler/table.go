package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/watzon/clickloop/internal/actions"
)

// Table is the set of cron jobs, kept sorted by time of day. Indexes passed
// to its methods refer to that order. Jobs are replaced rather than mutated
// so the scheduler can read them without holding the lock.
type Table struct {
	mu   sync.RWMutex
	jobs []*CronJob
}

// NewTable returns a table holding jobs.
func NewTable(jobs ...*CronJob) *Table {
	t := &Table{}
	t.Replace(jobs)
	return t
}

// Len returns the number of jobs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Jobs returns copies of all jobs in time order.
func (t *Table) Jobs() []CronJob {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]CronJob, len(t.jobs))
	for i, j := range t.jobs {
		out[i] = *j.clone()
	}
	return out
}

// Get returns a copy of job i.
func (t *Table) Get(i int) (CronJob, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.check(i); err != nil {
		return CronJob{}, err
	}
	return *t.jobs[i].clone(), nil
}

// Add inserts job keeping time order.
func (t *Table) Add(job *CronJob) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	t.mu.Lock()
	t.jobs = append(t.jobs, job.clone())
	t.sort()
	t.mu.Unlock()
}

// Update replaces job i, keeping its identity and execution time.
func (t *Table) Update(i int, job CronJob) error {
	if err := job.Time.Validate(); err != nil {
		return err
	}
	if job.Name == "" {
		return &actions.ValidationError{Field: "name", Message: "must not be empty"}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	updated := job.clone()
	updated.ID = t.jobs[i].ID
	updated.LastExecuted = t.jobs[i].LastExecuted
	t.jobs[i] = updated
	t.sort()
	return nil
}

// Remove deletes job i.
func (t *Table) Remove(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
	return nil
}

// Duplicate appends a copy of job i named "<name> <i>".
func (t *Table) Duplicate(i int) (CronJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return CronJob{}, err
	}
	dup := t.jobs[i].clone()
	dup.ID = uuid.New().String()
	dup.Name = fmt.Sprintf("%s %d", dup.Name, i)
	t.jobs = append(t.jobs, dup)
	t.sort()
	return *dup.clone(), nil
}

// ToggleActive flips job i's active flag and returns the new value.
func (t *Table) ToggleActive(i int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return false, err
	}
	toggled := t.jobs[i].clone()
	toggled.Active = !toggled.Active
	t.jobs[i] = toggled
	return toggled.Active, nil
}

// Clear removes every job.
func (t *Table) Clear() {
	t.mu.Lock()
	t.jobs = nil
	t.mu.Unlock()
}

// Replace swaps the whole table for jobs, as an import does.
func (t *Table) Replace(jobs []*CronJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = make([]*CronJob, 0, len(jobs))
	for _, j := range jobs {
		c := j.clone()
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		t.jobs = append(t.jobs, c)
	}
	t.sort()
}

// markExecuted records a fire of the job with id.
func (t *Table) markExecuted(id string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j.ID == id {
			updated := j.clone()
			updated.LastExecuted = at
			t.jobs[i] = updated
			return
		}
	}
}

// snapshot returns the job pointers; they are never mutated in place.
func (t *Table) snapshot() []*CronJob {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*CronJob(nil), t.jobs...)
}

func (t *Table) check(i int) error {
	if i < 0 || i >= len(t.jobs) {
		return &actions.IndexError{Index: i, Len: len(t.jobs)}
	}
	return nil
}

func (t *Table) sort() {
	sort.SliceStable(t.jobs, func(a, b int) bool {
		ta, tb := t.jobs[a].Time, t.jobs[b].Time
		if ta.Hour != tb.Hour {
			return ta.Hour < tb.Hour
		}
		return ta.Minute < tb.Minute
	})
}
