package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/events"
)

const (
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongTimeout      = 60 * time.Second
	maxMessageSize   = 64 * 1024
	maxSubscriptions = 32
	sendBufferSize   = 256
)

// Client represents a connected WebSocket client. A client without
// subscriptions receives every event.
type Client struct {
	ID            string
	conn          *websocket.Conn
	broker        *Broker
	subscriptions map[string]*Subscription
	mu            sync.RWMutex
	sendCh        chan []byte
	done          chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, broker *Broker) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:            uuid.New().String(),
		conn:          conn,
		broker:        broker,
		subscriptions: make(map[string]*Subscription),
		sendCh:        make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run starts the client's write and ping loops and reads until the
// connection closes.
func (c *Client) Run() {
	go c.writePump()
	go c.pingPump()
	c.readPump()
}

// Close terminates the client connection.
func (c *Client) Close() {
	c.closeWith(websocket.StatusNormalClosure, "closing")
}

// CloseGoingAway terminates the connection during broker shutdown.
func (c *Client) CloseGoingAway() {
	c.closeWith(websocket.StatusGoingAway, "server shutting down")
}

func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
		close(c.done)
	}
	c.subscriptions = make(map[string]*Subscription)
	c.mu.Unlock()

	c.cancel()
	c.conn.Close(code, reason)
}

// Send queues a message to be sent to the client.
func (c *Client) Send(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return context.Canceled
	default:
		log.Warn().Str("client_id", c.ID).Msg("Client send buffer full, dropping message")
		return nil
	}
}

// SendError sends an error message to the client.
func (c *Client) SendError(msgID string, code ErrorCode, message string) error {
	payload, _ := json.Marshal(&ErrorPayload{
		Code:    string(code),
		Message: message,
	})

	return c.Send(&Message{
		ID:      msgID,
		Type:    MessageTypeError,
		Payload: payload,
	})
}

// Deliver sends event if it matches one of the client's subscriptions.
func (c *Client) Deliver(event *events.Event) {
	subID, ok := c.match(event)
	if !ok {
		return
	}

	payload, err := json.Marshal(&EventPayload{SubscriptionID: subID, Event: event})
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Failed to encode event")
		return
	}
	_ = c.Send(&Message{Type: MessageTypeEvent, Payload: payload})
}

func (c *Client) match(event *events.Event) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subscriptions) == 0 {
		return "", true
	}
	for id, sub := range c.subscriptions {
		if sub.Matches(event) {
			return id, true
		}
	}
	return "", false
}

// AddSubscription registers a subscription for this client.
func (c *Client) AddSubscription(sub *Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subscriptions) >= maxSubscriptions {
		return ErrSubscriptionLimit
	}

	c.subscriptions[sub.ID] = sub
	return nil
}

// RemoveSubscription removes a subscription from this client.
func (c *Client) RemoveSubscription(subID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[subID]; !ok {
		return ErrSubscriptionMissing
	}
	delete(c.subscriptions, subID)
	return nil
}

// Subscriptions returns all subscriptions for this client.
func (c *Client) Subscriptions() []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.SendError("", ErrorCodeInvalidMessage, "Invalid JSON message")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.sendCh:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("WebSocket write error")
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, pongTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("Ping failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MessageTypePing:
		c.handlePing(msg)
	default:
		_ = c.SendError(msg.ID, ErrorCodeInvalidMessage, "Unknown message type")
	}
}

func (c *Client) handleSubscribe(msg *Message) {
	var payload SubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Invalid subscribe payload")
			return
		}
	}

	sub, err := NewSubscription(c.ID, &payload)
	if err != nil {
		_ = c.SendError(msg.ID, ErrorCodeInvalidFilter, err.Error())
		return
	}
	sub.ID = uuid.New().String()

	if err := c.AddSubscription(sub); err != nil {
		_ = c.SendError(msg.ID, ErrorCodeSubscriptionLimit, err.Error())
		return
	}

	log.Debug().
		Str("client_id", c.ID).
		Str("subscription_id", sub.ID).
		Str("source", sub.Source).
		Msg("Subscription created")

	ack, _ := json.Marshal(&SubscribedPayload{SubscriptionID: sub.ID})
	_ = c.Send(&Message{
		ID:      msg.ID,
		Type:    MessageTypeSubscribed,
		Payload: ack,
	})
}

func (c *Client) handleUnsubscribe(msg *Message) {
	var payload UnsubscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Invalid unsubscribe payload")
		return
	}

	if payload.SubscriptionID == "" {
		_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, "Subscription ID is required")
		return
	}

	if err := c.RemoveSubscription(payload.SubscriptionID); err != nil {
		_ = c.SendError(msg.ID, ErrorCodeInvalidPayload, err.Error())
	}
}

func (c *Client) handlePing(msg *Message) {
	_ = c.Send(&Message{
		ID:   msg.ID,
		Type: MessageTypePong,
	})
}
