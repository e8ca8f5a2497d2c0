// Package debounce provides a stateful gate that collapses bursts of calls to
// a guarded operation into a single deferred call.
package debounce

import (
	"sync"
	"time"
)

// Gate guards one operation. Every Trigger within the quiet window cancels the
// pending invocation and reschedules it with the newest argument, so only the
// last call of a burst runs.
//
// All methods are safe for concurrent use. The guarded function never runs
// concurrently with itself from the same gate.
type Gate[T any] struct {
	mu      sync.Mutex
	runMu   sync.Mutex
	window  time.Duration
	fn      func(T)
	timer   *time.Timer
	pending bool
	arg     T
	seq     uint64 // invalidates timers that lost the race with Stop
}

// New returns a gate that runs fn once window has elapsed without a new
// Trigger. A non-positive window runs fn synchronously on every Trigger.
func New[T any](window time.Duration, fn func(T)) *Gate[T] {
	return &Gate[T]{window: window, fn: fn}
}

// Trigger schedules fn(arg), replacing any pending call.
func (g *Gate[T]) Trigger(arg T) {
	if g.window <= 0 {
		g.run(arg)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = true
	g.arg = arg
	g.seq++
	current := g.seq

	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.window, func() {
		g.mu.Lock()
		if !g.pending || g.seq != current {
			g.mu.Unlock()
			return
		}
		g.pending = false
		arg := g.arg
		g.timer = nil
		g.mu.Unlock()
		g.run(arg)
	})
}

// Flush runs the pending call now, if any.
func (g *Gate[T]) Flush() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.seq++
	if !g.pending {
		g.mu.Unlock()
		return
	}
	g.pending = false
	arg := g.arg
	g.mu.Unlock()
	g.run(arg)
}

// Cancel drops the pending call.
func (g *Gate[T]) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.seq++
	g.pending = false
	var zero T
	g.arg = zero
}

// Pending reports whether a call is scheduled.
func (g *Gate[T]) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

func (g *Gate[T]) run(arg T) {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.fn(arg)
}

// Func is a Gate for operations without arguments.
type Func = Gate[struct{}]

// NewFunc returns a gate for a niladic operation.
func NewFunc(window time.Duration, fn func()) *Func {
	return New(window, func(struct{}) { fn() })
}
