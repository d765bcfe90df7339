package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
)

// Lifecycle event types
const (
	EventTypeClosed     EventType = "closed"
	EventTypeRolledOver EventType = "rolled_over"
	EventTypeRejected   EventType = "rejected"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypePeriod       EntityType = "period"
	EntityTypeExpense      EntityType = "expense"
	EntityTypeContribution EntityType = "contribution"
	EntityTypeTemplate     EntityType = "template"
	EntityTypeSubscription EntityType = "subscription"
)

// knownEntities lists the entities a client may subscribe to
var knownEntities = map[EntityType]bool{
	EntityTypePeriod:       true,
	EntityTypeExpense:      true,
	EntityTypeContribution: true,
	EntityTypeTemplate:     true,
}

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, periodId, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`   // Combined type e.g. "period.closed"
	Entity    EntityType  `json:"entity"` // Entity type e.g. "period"
	PeriodID  *uuid.UUID  `json:"periodId,omitempty"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// InPeriod tags the event with the period it belongs to
func (e Event) InPeriod(periodID uuid.UUID) Event {
	e.PeriodID = &periodID
	return e
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func periodEvent(eventType EventType, p *domain.Period) Event {
	return NewEvent(eventType, EntityTypePeriod, p).InPeriod(p.ID)
}

func PeriodCreated(p *domain.Period) Event { return periodEvent(EventTypeCreated, p) }
func PeriodUpdated(p *domain.Period) Event { return periodEvent(EventTypeUpdated, p) }
func PeriodClosed(p *domain.Period) Event  { return periodEvent(EventTypeClosed, p) }
func PeriodDeleted(p *domain.Period) Event { return periodEvent(EventTypeDeleted, p) }

// PeriodRolledOver reports the entries copied into periodID
func PeriodRolledOver(periodID uuid.UUID, result interface{}) Event {
	return NewEvent(EventTypeRolledOver, EntityTypePeriod, result).InPeriod(periodID)
}

func ExpenseCreated(e *domain.Expense) Event {
	return NewEvent(EventTypeCreated, EntityTypeExpense, e).InPeriod(e.PeriodID)
}

func ExpenseUpdated(e *domain.Expense) Event {
	return NewEvent(EventTypeUpdated, EntityTypeExpense, e).InPeriod(e.PeriodID)
}

func ExpenseDeleted(e *domain.Expense) Event {
	return NewEvent(EventTypeDeleted, EntityTypeExpense, e).InPeriod(e.PeriodID)
}

func ContributionCreated(c *domain.Contribution) Event {
	return NewEvent(EventTypeCreated, EntityTypeContribution, c).InPeriod(c.PeriodID)
}

func ContributionUpdated(c *domain.Contribution) Event {
	return NewEvent(EventTypeUpdated, EntityTypeContribution, c).InPeriod(c.PeriodID)
}

func ContributionDeleted(c *domain.Contribution) Event {
	return NewEvent(EventTypeDeleted, EntityTypeContribution, c).InPeriod(c.PeriodID)
}

// Templates belong to no period, so period-scoped subscriptions never see them
func TemplateCreated(t *domain.ExpenseTemplate) Event {
	return NewEvent(EventTypeCreated, EntityTypeTemplate, t)
}

func TemplateUpdated(t *domain.ExpenseTemplate) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTemplate, t)
}

func TemplateDeleted(t *domain.ExpenseTemplate) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTemplate, t)
}

// SubscriptionUpdated acknowledges a subscribe message
func SubscriptionUpdated(sub Subscription) Event {
	return NewEvent(EventTypeUpdated, EntityTypeSubscription, sub)
}

// SubscriptionRejected answers a subscribe message that could not be applied
func SubscriptionRejected(reason string) Event {
	return NewEvent(EventTypeRejected, EntityTypeSubscription, map[string]string{"reason": reason})
}
