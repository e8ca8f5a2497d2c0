// Package player executes recorded actions against an injector.
package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/inject"
	"github.com/watzon/clickloop/internal/metrics"
)

// ErrInjectionFailed is the sentinel wrapped by InjectionError.
var ErrInjectionFailed = errors.New("input injection failed")

// InjectionError reports a failed injection call. It is fatal for the run
// that hit it.
type InjectionError struct {
	Index  int
	Action actions.Action
	Cause  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("injecting action %d (%s): %v", e.Index, e.Action, e.Cause)
}

func (e *InjectionError) Unwrap() []error {
	return []error{ErrInjectionFailed, e.Cause}
}

// Hooks let callers observe and gate playback.
type Hooks struct {
	// BeforeAction runs before the delay of each action. A non-nil error
	// aborts playback; the replay scheduler blocks here while paused.
	BeforeAction func(ctx context.Context, index int) error
	// AfterAction runs once an action has been injected.
	AfterAction func(index int, a actions.Action)
}

// Player runs action sequences. It keeps no per-run state, so one Player may
// serve several runs as long as the injector tolerates it; pass an
// inject.Locked to serialize them.
type Player struct {
	injector inject.Injector
	wait     func(ctx context.Context, d time.Duration) error
}

// New returns a player driving injector.
func New(injector inject.Injector) *Player {
	return &Player{injector: injector, wait: Wait}
}

// Play executes acts in order. Cancellation is checked before every action and
// interrupts a pending delay; an action whose injection has started is never
// cut short. Returns ctx.Err() when cancelled.
func (p *Player) Play(ctx context.Context, acts []actions.Action, hooks Hooks) error {
	for i, a := range acts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if hooks.BeforeAction != nil {
			if err := hooks.BeforeAction(ctx, i); err != nil {
				return err
			}
		}
		if err := p.wait(ctx, a.Delay); err != nil {
			return err
		}
		if err := p.Dispatch(a); err != nil {
			return &InjectionError{Index: i, Action: a, Cause: err}
		}
		if hooks.AfterAction != nil {
			hooks.AfterAction(i, a)
		}
	}
	return nil
}

// Dispatch injects a single action immediately.
func (p *Player) Dispatch(a actions.Action) error {
	var err error
	switch a.Kind {
	case actions.KindClick:
		err = p.injector.InjectClick(a.X, a.Y)
	case actions.KindKey:
		if name, ok := actions.SpecialKey(a.Key); ok {
			err = p.injector.InjectKeyPress(name)
		} else {
			err = p.injector.InjectText(a.Key)
		}
	default:
		err = fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if err != nil {
		return err
	}

	metrics.RecordActionInjected(string(a.Kind))
	log.Trace().Str("action", a.String()).Msg("Action injected")
	return nil
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
