package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/watzon/clickloop/internal/events"
)

func TestSubscriptionMatches(t *testing.T) {
	tests := []struct {
		name    string
		payload SubscribePayload
		event   events.Event
		want    bool
	}{
		{"empty matches all", SubscribePayload{}, events.Event{Type: events.EventTypeReplay}, true},
		{"type match", SubscribePayload{Types: []events.EventType{events.EventTypeCron}}, events.Event{Type: events.EventTypeCron}, true},
		{"type mismatch", SubscribePayload{Types: []events.EventType{events.EventTypeCron}}, events.Event{Type: events.EventTypeReplay}, false},
		{"source glob", SubscribePayload{Source: "morning*"}, events.Event{Type: events.EventTypeCron, Source: "morning run"}, true},
		{"source glob mismatch", SubscribePayload{Source: "morning*"}, events.Event{Type: events.EventTypeCron, Source: "evening"}, false},
		{"type and source", SubscribePayload{Types: []events.EventType{events.EventTypeReplay}, Source: "list?"}, events.Event{Type: events.EventTypeReplay, Source: "list1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := NewSubscription("client", &tt.payload)
			if err != nil {
				t.Fatalf("NewSubscription: %v", err)
			}
			if got := sub.Matches(&tt.event); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSubscriptionInvalidGlob(t *testing.T) {
	_, err := NewSubscription("client", &SubscribePayload{Source: "[unclosed"})
	if err != ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

type harness struct {
	bus    *events.EventBus
	broker *Broker
	conn   *websocket.Conn
}

func newHarness(t *testing.T, cfg *BrokerConfig) *harness {
	t.Helper()

	bus := events.NewEventBus(nil)
	broker := NewBroker(bus, cfg)
	broker.Start()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, broker)
		if !broker.RegisterClient(client) {
			conn.Close(websocket.StatusTryAgainLater, "at capacity")
			return
		}
		defer broker.UnregisterClient(client.ID)
		client.Run()
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(broker.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	waitFor(t, func() bool { return broker.ClientCount() == 1 })

	return &harness{bus: bus, broker: broker, conn: conn}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) read(t *testing.T) *Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := h.conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return &msg
}

func (h *harness) write(t *testing.T, msg *Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func (h *harness) emit(eventType events.EventType, source, action string) {
	h.bus.Emit(eventType, source, action, nil)
	h.bus.ProcessPending(context.Background())
}

func decodeEvent(t *testing.T, msg *Message) *EventPayload {
	t.Helper()
	if msg.Type != MessageTypeEvent {
		t.Fatalf("expected event message, got %s", msg.Type)
	}
	var payload EventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	return &payload
}

func TestBrokerDeliversAllEventsWithoutSubscription(t *testing.T) {
	h := newHarness(t, nil)

	h.emit(events.EventTypeReplay, "list1", events.ActionStarted)

	payload := decodeEvent(t, h.read(t))
	if payload.Event.Source != "list1" || payload.Event.Action != events.ActionStarted {
		t.Errorf("unexpected event: %+v", payload.Event)
	}
	if payload.SubscriptionID != "" {
		t.Errorf("expected no subscription id, got %q", payload.SubscriptionID)
	}
}

func TestBrokerFiltersBySubscription(t *testing.T) {
	h := newHarness(t, nil)

	sub, _ := json.Marshal(&SubscribePayload{Types: []events.EventType{events.EventTypeCron}, Source: "morning*"})
	h.write(t, &Message{ID: "1", Type: MessageTypeSubscribe, Payload: sub})

	ack := h.read(t)
	if ack.Type != MessageTypeSubscribed || ack.ID != "1" {
		t.Fatalf("expected subscribed ack, got %+v", ack)
	}
	var subscribed SubscribedPayload
	if err := json.Unmarshal(ack.Payload, &subscribed); err != nil {
		t.Fatalf("Unmarshal ack: %v", err)
	}

	h.emit(events.EventTypeReplay, "morning list", events.ActionStarted)
	h.emit(events.EventTypeCron, "evening", events.ActionFired)
	h.emit(events.EventTypeCron, "morning run", events.ActionFired)

	payload := decodeEvent(t, h.read(t))
	if payload.Event.Source != "morning run" {
		t.Errorf("expected morning run, got %q", payload.Event.Source)
	}
	if payload.SubscriptionID != subscribed.SubscriptionID {
		t.Errorf("subscription id = %q, want %q", payload.SubscriptionID, subscribed.SubscriptionID)
	}

	if stats := h.broker.Stats(); stats.Subscriptions != 1 {
		t.Errorf("expected 1 subscription, got %d", stats.Subscriptions)
	}
}

func TestClientPingAndErrors(t *testing.T) {
	h := newHarness(t, nil)

	h.write(t, &Message{ID: "p", Type: MessageTypePing})
	if msg := h.read(t); msg.Type != MessageTypePong || msg.ID != "p" {
		t.Fatalf("expected pong, got %+v", msg)
	}

	h.write(t, &Message{ID: "x", Type: "bogus"})
	msg := h.read(t)
	if msg.Type != MessageTypeError {
		t.Fatalf("expected error, got %+v", msg)
	}
	var payload ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal error payload: %v", err)
	}
	if payload.Code != string(ErrorCodeInvalidMessage) {
		t.Errorf("code = %q", payload.Code)
	}

	bad, _ := json.Marshal(&SubscribePayload{Source: "[unclosed"})
	h.write(t, &Message{ID: "s", Type: MessageTypeSubscribe, Payload: bad})
	if msg := h.read(t); msg.Type != MessageTypeError {
		t.Fatalf("expected error for bad glob, got %+v", msg)
	}

	unsub, _ := json.Marshal(&UnsubscribePayload{SubscriptionID: "missing"})
	h.write(t, &Message{ID: "u", Type: MessageTypeUnsubscribe, Payload: unsub})
	if msg := h.read(t); msg.Type != MessageTypeError {
		t.Fatalf("expected error for unknown subscription, got %+v", msg)
	}
}

func TestBrokerMaxConnections(t *testing.T) {
	broker := NewBroker(nil, &BrokerConfig{MaxConnections: 1})

	if !broker.RegisterClient(&Client{ID: "a"}) {
		t.Fatal("first client rejected")
	}
	if broker.RegisterClient(&Client{ID: "b"}) {
		t.Fatal("second client accepted past capacity")
	}

	broker.UnregisterClient("a")
	if broker.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", broker.ClientCount())
	}
}

func TestBrokerStopDisconnectsClients(t *testing.T) {
	h := newHarness(t, nil)

	h.broker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := h.conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("expected going away close, got %v", err)
	}
	if h.broker.RegisterClient(&Client{ID: "late"}) {
		t.Fatal("stopped broker accepted a client")
	}
}
