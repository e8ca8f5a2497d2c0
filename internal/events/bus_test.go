package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	bus := NewEventBus(nil)

	event := &Event{
		Type:    EventTypeReplay,
		Source:  "login",
		Action:  ActionStarted,
		Payload: map[string]any{"lists": 2},
	}
	bus.Publish(event)

	require.NotEmpty(t, event.ID)
	require.NotZero(t, event.CreatedAt)
	require.Equal(t, 1, bus.ProcessPending(context.Background()))
	require.Equal(t, 0, bus.ProcessPending(context.Background()))
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(nil)
	ctx := context.Background()

	var received *Event
	bus.Subscribe(EventTypeCron, "morning", ActionFired, func(ctx context.Context, event *Event) error {
		received = event
		return nil
	})

	bus.Emit(EventTypeCron, "evening", ActionFired, nil)
	bus.Emit(EventTypeCron, "morning", ActionFired, "fired")
	bus.ProcessPending(ctx)

	require.NotNil(t, received)
	require.Equal(t, "morning", received.Source)
	require.Equal(t, "fired", received.Payload)
}

func TestEventBus_Subscribe_Wildcard(t *testing.T) {
	bus := NewEventBus(nil)
	ctx := context.Background()

	var anySource, anyAction, all int
	bus.Subscribe(EventTypeReplay, "*", ActionPaused, func(context.Context, *Event) error {
		anySource++
		return nil
	})
	bus.Subscribe(EventTypeReplay, "login", "*", func(context.Context, *Event) error {
		anyAction++
		return nil
	})
	bus.Subscribe(EventTypeReplay, "*", "*", func(context.Context, *Event) error {
		all++
		return nil
	})

	bus.Emit(EventTypeReplay, "login", ActionPaused, nil)
	bus.Emit(EventTypeReplay, "farm", ActionPaused, nil)
	bus.Emit(EventTypeReplay, "login", ActionStarted, nil)
	bus.Emit(EventTypeCron, "login", ActionPaused, nil)
	bus.ProcessPending(ctx)

	require.Equal(t, 2, anySource)
	require.Equal(t, 2, anyAction)
	require.Equal(t, 3, all)
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(nil)

	var second bool
	bus.Subscribe(EventTypeEditor, "*", "*", func(context.Context, *Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(EventTypeEditor, "*", "*", func(context.Context, *Event) error {
		second = true
		return nil
	})

	bus.Emit(EventTypeEditor, "", ActionChanged, nil)
	bus.ProcessPending(context.Background())
	require.True(t, second)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(&EventBusConfig{BufferSize: 2})
	for i := 0; i < 5; i++ {
		bus.Emit(EventTypeRecorder, "", ActionRecorded, i)
	}
	require.Equal(t, 2, bus.ProcessPending(context.Background()))
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *EventBus
	bus.Emit(EventTypeRecorder, "", ActionStarted, nil)
}

func TestEventBus_StartStop(t *testing.T) {
	bus := NewEventBus(nil)

	var mu sync.Mutex
	var order []int
	var count atomic.Int32
	bus.SubscribeAll(func(ctx context.Context, event *Event) error {
		mu.Lock()
		order = append(order, event.Payload.(int))
		mu.Unlock()
		count.Add(1)
		return nil
	})

	bus.Start()
	for i := 0; i < 10; i++ {
		bus.Emit(EventTypePlayback, "", ActionStarted, i)
	}

	require.Eventually(t, func() bool { return count.Load() == 10 }, time.Second, 5*time.Millisecond)
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}
