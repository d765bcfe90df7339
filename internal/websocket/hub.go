package websocket

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrClientClosed is returned when sending to a closed client
	ErrClientClosed = errors.New("client is closed")
	// ErrSlowClient is returned when a client's send buffer is full
	ErrSlowClient = errors.New("client send buffer full")
)

// Subscriber is what the hub needs from a connection
type Subscriber interface {
	ID() string
	OwnerID() uuid.UUID
	Wants(e Event) bool
	Send(data []byte) error
	Close() error
}

// Hub fans events out to the subscribers of each owner. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]map[string]Subscriber
}

func NewHub() *Hub {
	return &Hub{owners: make(map[uuid.UUID]map[string]Subscriber)}
}

// Register adds a subscriber under its owner
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	clients := h.owners[s.OwnerID()]
	if clients == nil {
		clients = make(map[string]Subscriber)
		h.owners[s.OwnerID()] = clients
	}
	clients[s.ID()] = s
	h.mu.Unlock()

	log.Debug().
		Str("owner_id", s.OwnerID().String()).
		Str("client_id", s.ID()).
		Msg("WebSocket client registered")
}

// Unregister removes a subscriber; unknown subscribers are ignored
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(s)
}

func (h *Hub) remove(s Subscriber) bool {
	clients, ok := h.owners[s.OwnerID()]
	if !ok {
		return false
	}
	if _, ok := clients[s.ID()]; !ok {
		return false
	}
	delete(clients, s.ID())
	if len(clients) == 0 {
		delete(h.owners, s.OwnerID())
	}
	return true
}

// Broadcast delivers an event to the owner's subscribers whose subscription matches it.
// Subscribers that cannot keep up are disconnected.
func (h *Hub) Broadcast(ownerID uuid.UUID, event Event) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.owners[ownerID]))
	for _, s := range h.owners[ownerID] {
		if s.Wants(event) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("owner_id", ownerID.String()).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	var dropped []Subscriber
	for _, s := range targets {
		if err := s.Send(data); err != nil {
			log.Warn().
				Err(err).
				Str("owner_id", ownerID.String()).
				Str("client_id", s.ID()).
				Str("event_type", event.Type).
				Msg("Disconnecting WebSocket client")
			dropped = append(dropped, s)
		}
	}
	h.drop(dropped)

	log.Debug().
		Str("owner_id", ownerID.String()).
		Str("event_type", event.Type).
		Int("delivered", len(targets)-len(dropped)).
		Msg("Broadcast event")
}

func (h *Hub) drop(subscribers []Subscriber) {
	if len(subscribers) == 0 {
		return
	}
	h.mu.Lock()
	for _, s := range subscribers {
		h.remove(s)
	}
	h.mu.Unlock()
	for _, s := range subscribers {
		_ = s.Close()
	}
}

// ClientCount returns the number of subscribers connected for an owner
func (h *Hub) ClientCount(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners[ownerID])
}

// TotalClientCount returns the number of subscribers across all owners
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, clients := range h.owners {
		total += len(clients)
	}
	return total
}

// CloseAll disconnects every subscriber; used during server shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []Subscriber
	for _, clients := range h.owners {
		for _, s := range clients {
			all = append(all, s)
		}
	}
	h.owners = make(map[uuid.UUID]map[string]Subscriber)
	h.mu.Unlock()

	for _, s := range all {
		if err := s.Close(); err != nil {
			log.Debug().Err(err).Str("client_id", s.ID()).Msg("Error closing WebSocket client")
		}
	}
}
