package actions

import (
	"fmt"
	"sync"
	"time"
)

// DefaultRepeat is the repeat count of a freshly created list.
const DefaultRepeat = 1

// Policy is the editable replay policy of a List.
type Policy struct {
	Name     string
	Sequence int
	Repeat   int // 0 repeats until stopped
	Interval int // minutes; 0 means no cooldown
	Active   bool
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	if p.Name == "" {
		return invalid("name", "must not be empty")
	}
	if p.Sequence < 0 {
		return invalid("sequence", "must be non-negative")
	}
	if p.Repeat < 0 {
		return invalid("repeat", "must be non-negative")
	}
	if p.Interval < 0 {
		return invalid("interval", "must be non-negative")
	}
	return nil
}

// List is a named, ordered, replayable sequence of actions.
//
// The editor mutates actions and policy through the methods below; a running
// scheduler reads a Snapshot at the start of each repeat-loop iteration, so
// edits become visible from the next iteration. Execution bookkeeping
// (Executed, LastExecuted) belongs to the scheduler.
type List struct {
	mu           sync.RWMutex
	policy       Policy
	actions      []Action
	executed     int
	lastExecuted time.Time
}

// NewList returns an empty active list with the default repeat count.
func NewList(name string) *List {
	return &List{policy: Policy{Name: name, Repeat: DefaultRepeat, Active: true}}
}

// NewListWithPolicy returns a list holding a copy of acts.
func NewListWithPolicy(p Policy, acts []Action) (*List, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, a := range acts {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	l := &List{policy: p, actions: make([]Action, len(acts))}
	copy(l.actions, acts)
	return l, nil
}

// Validate checks the policy and every action.
func (l *List) Validate() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.policy.Validate(); err != nil {
		return err
	}
	for i, a := range l.actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

// Name returns the list name.
func (l *List) Name() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy.Name
}

// Policy returns a copy of the replay policy.
func (l *List) Policy() Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}

// SetPolicy replaces the replay policy. Nothing changes if p is invalid.
func (l *List) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.policy = p
	l.mu.Unlock()
	return nil
}

// SetActive sets the active flag.
func (l *List) SetActive(active bool) {
	l.mu.Lock()
	l.policy.Active = active
	l.mu.Unlock()
}

func (l *List) setSequence(seq int) {
	l.mu.Lock()
	l.policy.Sequence = seq
	l.mu.Unlock()
}

// Len returns the number of actions.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

// Snapshot returns a copy of the actions.
func (l *List) Snapshot() []Action {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Action, len(l.actions))
	copy(out, l.actions)
	return out
}

// Append adds an action at the end.
func (l *List) Append(a Action) {
	l.mu.Lock()
	l.actions = append(l.actions, a)
	l.mu.Unlock()
}

// Remove deletes the action at index i.
func (l *List) Remove(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.actions) {
		return &IndexError{Index: i, Len: len(l.actions)}
	}
	l.actions = append(l.actions[:i], l.actions[i+1:]...)
	return nil
}

// SetAction replaces the action at index i.
func (l *List) SetAction(i int, a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.actions) {
		return &IndexError{Index: i, Len: len(l.actions)}
	}
	l.actions[i] = a
	return nil
}

// Clear drops every action and leaves the policy untouched.
func (l *List) Clear() {
	l.mu.Lock()
	l.actions = nil
	l.mu.Unlock()
}

// Clone returns an independent copy named name, with fresh execution state.
func (l *List) Clone(name string) *List {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.policy
	p.Name = name
	c := &List{policy: p, actions: make([]Action, len(l.actions))}
	copy(c.actions, l.actions)
	return c
}

// Executed returns the number of repeat loops completed since the last reset.
func (l *List) Executed() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.executed
}

// LastExecuted returns when the last repeat loop completed; zero means never.
func (l *List) LastExecuted() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastExecuted
}

// ResetExecution zeroes the execution bookkeeping.
func (l *List) ResetExecution() {
	l.mu.Lock()
	l.executed = 0
	l.lastExecuted = time.Time{}
	l.mu.Unlock()
}

// MarkExecuted records a completed repeat loop at t.
func (l *List) MarkExecuted(t time.Time) {
	l.mu.Lock()
	l.executed++
	l.lastExecuted = t
	l.mu.Unlock()
}

// Eligible reports whether the list may run at now under interval gating.
func (l *List) Eligible(now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.executed == 0 || l.policy.Interval == 0 {
		return true
	}
	cooldown := time.Duration(l.policy.Interval) * time.Minute
	return !now.Before(l.lastExecuted.Add(cooldown))
}
