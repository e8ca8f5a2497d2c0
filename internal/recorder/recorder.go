// Package recorder turns a stream of captured input events into action lists.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/clock"
)

// DefaultNamePrefix is prepended to the counter when naming new recordings.
const DefaultNamePrefix = "Recording_"

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// EventKind distinguishes captured input events.
type EventKind int

const (
	PointerPress EventKind = iota
	KeyPress
)

func (k EventKind) String() string {
	switch k {
	case PointerPress:
		return "pointer"
	case KeyPress:
		return "key"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// InputEvent is a single captured event. Key holds either a special key name
// or the literal character produced.
type InputEvent struct {
	Kind EventKind
	X, Y int
	Key  string
}

// Clipboard receives probed coordinates.
type Clipboard interface {
	Set(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Set(text string) error {
	return clipboard.WriteAll(text)
}

// Options configures a Recorder. Zero values pick defaults.
type Options struct {
	NamePrefix string
	Clock      clock.Clock
	Clipboard  Clipboard
}

// Recorder is either idle or recording into one list.
type Recorder struct {
	mu        sync.Mutex
	prefix    string
	clock     clock.Clock
	clipboard Clipboard

	recording bool
	probing   bool
	counter   int
	last      time.Time
	current   *actions.List
}

// New creates an idle recorder.
func New(opts Options) *Recorder {
	if opts.NamePrefix == "" {
		opts.NamePrefix = DefaultNamePrefix
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = SystemClipboard{}
	}
	return &Recorder{prefix: opts.NamePrefix, clock: opts.Clock, clipboard: opts.Clipboard}
}

// Start begins a new recording named from the running counter.
func (r *Recorder) Start() (*actions.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return nil, ErrAlreadyRecording
	}
	r.counter++
	r.current = actions.NewList(fmt.Sprintf("%s%d", r.prefix, r.counter))
	r.last = r.clock.Now()
	r.recording = true

	log.Info().Str("list", r.current.Name()).Msg("Recording started")
	return r.current, nil
}

// Stop ends the recording and returns the finished list.
func (r *Recorder) Stop() (*actions.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, ErrNotRecording
	}
	r.recording = false
	l := r.current
	r.current = nil

	log.Info().Str("list", l.Name()).Int("actions", l.Len()).Msg("Recording stopped")
	return l, nil
}

// Toggle starts a recording when idle and stops it otherwise. The returned
// list is the new recording or the finished one; started tells which.
func (r *Recorder) Toggle() (l *actions.List, started bool, err error) {
	if r.Recording() {
		l, err = r.Stop()
		return l, false, err
	}
	l, err = r.Start()
	return l, true, err
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Current returns the list being recorded, or nil when idle.
func (r *Recorder) Current() *actions.List {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetProbe enables or disables probe mode. While probing, the next pointer
// press is copied to the clipboard instead of being recorded.
func (r *Recorder) SetProbe(on bool) {
	r.mu.Lock()
	r.probing = on
	r.mu.Unlock()
}

// Probing reports whether probe mode is on.
func (r *Recorder) Probing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probing
}

// Observe handles one event and reports whether it was recorded.
func (r *Recorder) Observe(ev InputEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.probing {
		if ev.Kind == PointerPress {
			r.probing = false
			text := fmt.Sprintf("(%d, %d)", ev.X, ev.Y)
			if err := r.clipboard.Set(text); err != nil {
				log.Warn().Err(err).Str("coords", text).Msg("Failed to copy probed coordinates")
			} else {
				log.Info().Str("coords", text).Msg("Coordinates copied to clipboard")
			}
		}
		return false
	}
	if !r.recording {
		return false
	}

	now := r.clock.Now()
	delay := now.Sub(r.last)
	if delay < 0 {
		delay = 0
	}
	r.last = now

	switch ev.Kind {
	case PointerPress:
		r.current.Append(actions.Click(ev.X, ev.Y, delay))
	case KeyPress:
		if ev.Key == "" {
			return false
		}
		r.current.Append(actions.Key(ev.Key, delay))
	default:
		return false
	}
	return true
}

// Pump delivers events to handle on the calling goroutine until ctx is done
// or events is closed. Capture collaborators call from their own goroutines;
// funnelling them through one channel keeps recording single-threaded.
func Pump(ctx context.Context, events <-chan InputEvent, handle func(InputEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			handle(ev)
		}
	}
}
