package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/clock"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) Set(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func newTestRecorder() (*Recorder, *clock.Fake, *fakeClipboard) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	cb := &fakeClipboard{}
	return New(Options{Clock: clk, Clipboard: cb}), clk, cb
}

func TestRecorder_RecordsDelaysFromStart(t *testing.T) {
	r, clk, _ := newTestRecorder()

	l, started, err := r.Toggle()
	require.NoError(t, err)
	require.True(t, started)
	require.Equal(t, "Recording_1", l.Name())

	clk.Advance(1500 * time.Millisecond)
	require.True(t, r.Observe(InputEvent{Kind: PointerPress, X: 100, Y: 200}))
	clk.Advance(250 * time.Millisecond)
	require.True(t, r.Observe(InputEvent{Kind: KeyPress, Key: "enter"}))
	clk.Advance(time.Second)
	require.True(t, r.Observe(InputEvent{Kind: KeyPress, Key: "a"}))

	done, started, err := r.Toggle()
	require.NoError(t, err)
	require.False(t, started)
	require.Same(t, l, done)
	require.Equal(t, []actions.Action{
		actions.Click(100, 200, 1500*time.Millisecond),
		actions.Key("enter", 250*time.Millisecond),
		actions.Key("a", time.Second),
	}, done.Snapshot())
	require.False(t, r.Recording())
	require.Nil(t, r.Current())
}

func TestRecorder_IgnoresEventsWhileIdle(t *testing.T) {
	r, _, _ := newTestRecorder()
	require.False(t, r.Observe(InputEvent{Kind: PointerPress, X: 1, Y: 1}))

	_, err := r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorder_StartTwiceFails(t *testing.T) {
	r, _, _ := newTestRecorder()
	_, err := r.Start()
	require.NoError(t, err)
	_, err = r.Start()
	require.ErrorIs(t, err, ErrAlreadyRecording)
}

func TestRecorder_NamesFromCounter(t *testing.T) {
	r := New(Options{NamePrefix: "Take_", Clock: clock.NewFake(time.Time{}), Clipboard: &fakeClipboard{}})
	for i := 1; i <= 3; i++ {
		l, err := r.Start()
		require.NoError(t, err)
		require.Equal(t, "Take_"+string(rune('0'+i)), l.Name())
		_, err = r.Stop()
		require.NoError(t, err)
	}
}

func TestRecorder_ProbeCopiesNextPointerPress(t *testing.T) {
	r, _, cb := newTestRecorder()
	_, err := r.Start()
	require.NoError(t, err)

	r.SetProbe(true)
	require.True(t, r.Probing())

	require.False(t, r.Observe(InputEvent{Kind: KeyPress, Key: "x"}))
	require.True(t, r.Probing())

	require.False(t, r.Observe(InputEvent{Kind: PointerPress, X: 42, Y: 7}))
	require.Equal(t, "(42, 7)", cb.text)
	require.False(t, r.Probing())
	require.Zero(t, r.Current().Len())

	require.True(t, r.Observe(InputEvent{Kind: PointerPress, X: 1, Y: 2}))
	require.Equal(t, 1, r.Current().Len())
}

func TestRecorder_ProbeClipboardFailureLeavesProbeMode(t *testing.T) {
	r := New(Options{Clock: clock.NewFake(time.Time{}), Clipboard: &fakeClipboard{err: errors.New("no display")}})
	r.SetProbe(true)
	require.False(t, r.Observe(InputEvent{Kind: PointerPress, X: 1, Y: 1}))
	require.False(t, r.Probing())
}

func TestPump_DeliversInOrderUntilClosed(t *testing.T) {
	events := make(chan InputEvent, 3)
	events <- InputEvent{Kind: KeyPress, Key: "a"}
	events <- InputEvent{Kind: KeyPress, Key: "b"}
	events <- InputEvent{Kind: KeyPress, Key: "c"}
	close(events)

	var got []string
	err := Pump(context.Background(), events, func(ev InputEvent) { got = append(got, ev.Key) })
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Pump(ctx, make(chan InputEvent), func(InputEvent) {})
	require.ErrorIs(t, err, context.Canceled)
}
