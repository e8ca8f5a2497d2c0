// Package actions models recorded input steps and the named, ordered lists that
// group them for replay.
package actions

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind identifies the input primitive an Action replays.
type Kind string

const (
	// KindClick is a pointer click at absolute screen coordinates.
	KindClick Kind = "click"
	// KindKey is a single named key press or a literal string to type.
	KindKey Kind = "key"
)

// SpecialKeys are the key names injected as a single key press. Any other key
// identifier is typed as literal text.
var SpecialKeys = []string{
	"space", "enter", "shift", "ctrl", "alt", "tab", "backspace", "delete", "esc",
	"up", "down", "left", "right", "home", "end", "pageup", "pagedown",
}

var specialKeySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SpecialKeys))
	for _, k := range SpecialKeys {
		m[k] = struct{}{}
	}
	return m
}()

// SpecialKey reports whether key names one of SpecialKeys, ignoring case, and
// returns its canonical lower-case name.
func SpecialKey(key string) (string, bool) {
	name := strings.ToLower(key)
	_, ok := specialKeySet[name]
	return name, ok
}

// Action is one recorded step. Delay is waited before the step executes and is
// measured from the end of the previous step.
type Action struct {
	Kind  Kind
	X     int    // click only
	Y     int    // click only
	Key   string // key only
	Delay time.Duration
}

// Click returns a click action.
func Click(x, y int, delay time.Duration) Action {
	return Action{Kind: KindClick, X: x, Y: y, Delay: delay}
}

// Key returns a key action.
func Key(key string, delay time.Duration) Action {
	return Action{Kind: KindKey, Key: key, Delay: delay}
}

// Validate checks the action is replayable.
func (a Action) Validate() error {
	switch a.Kind {
	case KindClick:
	case KindKey:
		if a.Key == "" {
			return invalid("action.detail", "key identifier is empty")
		}
	default:
		return invalid("action.kind", fmt.Sprintf("unknown kind %q", a.Kind))
	}
	if a.Delay < 0 {
		return invalid("action.delay", "must be non-negative")
	}
	return nil
}

// String renders the action the way the editor lists it.
func (a Action) String() string {
	switch a.Kind {
	case KindClick:
		return fmt.Sprintf("Click at (%d, %d)", a.X, a.Y)
	case KindKey:
		return "Key " + a.Key
	default:
		return string(a.Kind)
	}
}

// Wire returns the [kind, detail, delay] triple used by the persisted formats.
func (a Action) Wire() []any {
	var detail any
	if a.Kind == KindClick {
		detail = []int{a.X, a.Y}
	} else {
		detail = a.Key
	}
	return []any{string(a.Kind), detail, a.Delay.Seconds()}
}

// MarshalJSON encodes the action as [kind, detail, delay].
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Wire())
}

// UnmarshalJSON decodes a [kind, detail, delay] triple.
func (a *Action) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("action must be a [kind, detail, delay] array: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("action must have 3 elements, got %d", len(parts))
	}

	var kind string
	if err := json.Unmarshal(parts[0], &kind); err != nil {
		return fmt.Errorf("action kind: %w", err)
	}

	var out Action
	switch Kind(kind) {
	case KindClick:
		var xy []float64
		if err := json.Unmarshal(parts[1], &xy); err != nil || len(xy) != 2 {
			return fmt.Errorf("click detail must be [x, y]")
		}
		if xy[0] != math.Trunc(xy[0]) || xy[1] != math.Trunc(xy[1]) {
			return fmt.Errorf("click detail must be [x, y]: coordinates must be integers")
		}
		out = Action{Kind: KindClick, X: int(xy[0]), Y: int(xy[1])}
	case KindKey:
		var key string
		if err := json.Unmarshal(parts[1], &key); err != nil {
			return fmt.Errorf("key detail must be a string")
		}
		out = Action{Kind: KindKey, Key: key}
	default:
		return fmt.Errorf("unknown action kind %q", kind)
	}

	var seconds float64
	if err := json.Unmarshal(parts[2], &seconds); err != nil {
		return fmt.Errorf("action delay must be a number")
	}
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("action delay must be a non-negative number")
	}
	out.Delay = Seconds(seconds)

	*a = out
	return nil
}

// Seconds converts fractional seconds to a Duration, rounding to the nearest
// nanosecond so that encode/decode cycles are stable.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
