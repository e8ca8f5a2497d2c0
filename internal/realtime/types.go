// Package realtime streams engine events to WebSocket clients.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/gobwas/glob"

	"github.com/watzon/clickloop/internal/events"
)

// MessageType represents the type of WebSocket message.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	MessageTypeConnected  MessageType = "connected"
	MessageTypeSubscribed MessageType = "subscribed"
	MessageTypeEvent      MessageType = "event"
	MessageTypeError      MessageType = "error"
	MessageTypePong       MessageType = "pong"
)

// Message is the base WebSocket message structure.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload for subscribe messages. Empty Types
// matches every event type; Source is a glob over list or job names.
type SubscribePayload struct {
	Types  []events.EventType `json:"types,omitempty"`
	Source string             `json:"source,omitempty"`
}

// UnsubscribePayload is the payload for unsubscribe messages.
type UnsubscribePayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// ConnectedPayload is the payload for connected messages.
type ConnectedPayload struct {
	ClientID string `json:"client_id"`
}

// SubscribedPayload acknowledges a subscription.
type SubscribedPayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// EventPayload carries one engine event to a subscriber.
type EventPayload struct {
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Event          *events.Event `json:"event"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Subscription is one client filter over the event stream.
type Subscription struct {
	ID        string             `json:"id"`
	ClientID  string             `json:"client_id"`
	Types     []events.EventType `json:"types,omitempty"`
	Source    string             `json:"source,omitempty"`
	CreatedAt time.Time          `json:"created_at"`

	types  map[events.EventType]struct{}
	source glob.Glob
}

// NewSubscription builds a subscription from a subscribe payload.
func NewSubscription(clientID string, payload *SubscribePayload) (*Subscription, error) {
	sub := &Subscription{
		ClientID:  clientID,
		Types:     payload.Types,
		Source:    payload.Source,
		CreatedAt: time.Now(),
	}

	if len(payload.Types) > 0 {
		sub.types = make(map[events.EventType]struct{}, len(payload.Types))
		for _, t := range payload.Types {
			sub.types[t] = struct{}{}
		}
	}

	if payload.Source != "" {
		g, err := glob.Compile(payload.Source)
		if err != nil {
			return nil, ErrInvalidFilter
		}
		sub.source = g
	}

	return sub, nil
}

// Matches reports whether event passes the subscription filter.
func (s *Subscription) Matches(event *events.Event) bool {
	if s.types != nil {
		if _, ok := s.types[event.Type]; !ok {
			return false
		}
	}
	if s.source != nil && !s.source.Match(event.Source) {
		return false
	}
	return true
}

// ErrorCode represents an error code for WebSocket errors.
type ErrorCode string

const (
	ErrorCodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"
	ErrorCodeInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	ErrorCodeInvalidFilter     ErrorCode = "INVALID_FILTER"
	ErrorCodeSubscriptionLimit ErrorCode = "SUBSCRIPTION_LIMIT_REACHED"
)
