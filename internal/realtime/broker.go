package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/events"
)

// Broker fans engine events out to connected WebSocket clients.
type Broker struct {
	bus *events.EventBus
	cfg BrokerConfig

	clients map[string]*Client
	mu      sync.RWMutex

	startOnce sync.Once
	stopped   bool
}

// BrokerConfig holds configuration for the broker.
type BrokerConfig struct {
	// MaxConnections caps concurrent clients; 0 means unlimited.
	MaxConnections int
}

// BrokerStats is a snapshot of broker counters.
type BrokerStats struct {
	Clients       int `json:"clients"`
	Subscriptions int `json:"subscriptions"`
}

// NewBroker creates a broker fed by bus.
func NewBroker(bus *events.EventBus, cfg *BrokerConfig) *Broker {
	b := &Broker{
		bus:     bus,
		clients: make(map[string]*Client),
	}
	if cfg != nil {
		b.cfg = *cfg
	}
	return b
}

// Start subscribes the broker to every bus event. Calling it again is a
// no-op.
func (b *Broker) Start() {
	if b.bus == nil {
		return
	}
	b.startOnce.Do(func() {
		b.bus.SubscribeAll(b.handleEvent)
	})
}

// Stop disconnects every client. Events arriving afterwards are ignored.
func (b *Broker) Stop() {
	b.mu.Lock()
	b.stopped = true
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, client := range clients {
		client.CloseGoingAway()
	}
}

// RegisterClient adds a new client to the broker. It returns false when
// the broker is stopped or at capacity.
func (b *Broker) RegisterClient(client *Client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return false
	}
	if b.cfg.MaxConnections > 0 && len(b.clients) >= b.cfg.MaxConnections {
		log.Warn().Int("max_connections", b.cfg.MaxConnections).Msg("Rejecting WebSocket client, broker at capacity")
		return false
	}

	b.clients[client.ID] = client
	log.Debug().Str("client_id", client.ID).Int("total_clients", len(b.clients)).Msg("Client connected")
	return true
}

// UnregisterClient removes a client from the broker.
func (b *Broker) UnregisterClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[clientID]; !ok {
		return
	}
	delete(b.clients, clientID)
	log.Debug().Str("client_id", clientID).Int("total_clients", len(b.clients)).Msg("Client disconnected")
}

// Broadcast delivers event to every matching client.
func (b *Broker) Broadcast(event *events.Event) {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		client.Deliver(event)
	}
}

func (b *Broker) handleEvent(_ context.Context, event *events.Event) error {
	b.Broadcast(event)
	return nil
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stats returns current broker counters.
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BrokerStats{Clients: len(b.clients)}
	for _, client := range b.clients {
		stats.Subscriptions += len(client.Subscriptions())
	}
	return stats
}
