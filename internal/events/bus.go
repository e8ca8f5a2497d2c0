// Package events is the in-process pub/sub bus the engine publishes status
// changes on. Handlers run on the bus goroutine in publish order.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event *Event) error

// EventBus delivers published events to matching subscribers.
type EventBus struct {
	subscribers map[string][]EventHandler // key: "type:source:action"
	mu          sync.RWMutex
	queue       chan *Event
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startOnce   sync.Once
}

// EventBusConfig holds configuration for EventBus.
type EventBusConfig struct {
	// BufferSize is how many events may wait for delivery (default: 256).
	BufferSize int
}

// NewEventBus creates a new event bus. Events queue until Start or
// ProcessPending delivers them.
func NewEventBus(config *EventBusConfig) *EventBus {
	if config == nil {
		config = &EventBusConfig{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		queue:       make(chan *Event, config.BufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins background delivery.
func (bus *EventBus) Start() {
	bus.startOnce.Do(func() {
		bus.wg.Add(1)
		go bus.processLoop()
	})
}

// Stop delivers what is already queued and shuts down the bus.
func (bus *EventBus) Stop() {
	bus.cancel()
	bus.wg.Wait()
	bus.drain(context.Background())
}

// Publish queues an event. A nil bus discards it. When the queue is full the
// event is dropped with a warning so that publishers never block on slow
// subscribers.
func (bus *EventBus) Publish(event *Event) {
	if bus == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	select {
	case bus.queue <- event:
		log.Debug().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Str("source", event.Source).
			Str("action", event.Action).
			Msg("Event published")
	default:
		log.Warn().
			Str("type", string(event.Type)).
			Str("action", event.Action).
			Msg("Event queue full, dropping event")
	}
}

// Emit is shorthand for publishing a new event.
func (bus *EventBus) Emit(eventType EventType, source, action string, payload any) {
	bus.Publish(&Event{Type: eventType, Source: source, Action: action, Payload: payload})
}

// Subscribe registers a handler for events matching the pattern.
// Use "*" for source or action to match all.
func (bus *EventBus) Subscribe(eventType EventType, source, action string, handler EventHandler) {
	key := bus.makeKey(eventType, source, action)

	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.subscribers[key] = append(bus.subscribers[key], handler)

	log.Debug().
		Str("type", string(eventType)).
		Str("source", source).
		Str("action", action).
		Msg("Handler subscribed")
}

// SubscribeAll registers a handler for every event type.
func (bus *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range []EventType{EventTypeRecorder, EventTypeEditor, EventTypeReplay, EventTypePlayback, EventTypeCron} {
		bus.Subscribe(t, "*", "*", handler)
	}
}

// ProcessPending delivers every queued event and returns the number
// delivered.
func (bus *EventBus) ProcessPending(ctx context.Context) int {
	return bus.drain(ctx)
}

func (bus *EventBus) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case event := <-bus.queue:
			bus.processEvent(ctx, event)
			n++
		default:
			return n
		}
	}
}

// processEvent runs every handler matching event.
func (bus *EventBus) processEvent(ctx context.Context, event *Event) {
	handlers := bus.findHandlers(event)
	if len(handlers) == 0 {
		return
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Msg("Handler failed")
		}
	}
}

// findHandlers finds all handlers matching the event.
func (bus *EventBus) findHandlers(event *Event) []EventHandler {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	var handlers []EventHandler
	for _, key := range []string{
		bus.makeKey(event.Type, event.Source, event.Action),
		bus.makeKey(event.Type, "*", event.Action),
		bus.makeKey(event.Type, event.Source, "*"),
		bus.makeKey(event.Type, "*", "*"),
	} {
		handlers = append(handlers, bus.subscribers[key]...)
	}
	return handlers
}

func (bus *EventBus) makeKey(eventType EventType, source, action string) string {
	return fmt.Sprintf("%s:%s:%s", eventType, source, action)
}

func (bus *EventBus) processLoop() {
	defer bus.wg.Done()

	for {
		select {
		case <-bus.ctx.Done():
			return
		case event := <-bus.queue:
			bus.processEvent(bus.ctx, event)
		}
	}
}
