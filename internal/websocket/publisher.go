package websocket

import "github.com/google/uuid"

// EventPublisher is how services announce changes to an owner's data
type EventPublisher interface {
	Publish(ownerID uuid.UUID, event Event)
}

var _ EventPublisher = (*Hub)(nil)

// Publish broadcasts the event to the owner's matching subscribers
func (h *Hub) Publish(ownerID uuid.UUID, event Event) {
	h.Broadcast(ownerID, event)
}

// NoOpPublisher drops every event (the CLI and tests)
type NoOpPublisher struct{}

func (n *NoOpPublisher) Publish(ownerID uuid.UUID, event Event) {}
