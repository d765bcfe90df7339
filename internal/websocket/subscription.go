package websocket

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidSubscription is returned for unknown entities or a malformed period id
var ErrInvalidSubscription = errors.New("invalid subscription")

// Subscription narrows which of the owner's events a client receives.
// The zero value receives everything.
type Subscription struct {
	Entities []EntityType `json:"entities,omitempty"`
	PeriodID *uuid.UUID   `json:"periodId,omitempty"`
}

// ParseSubscription reads the comma separated ?entities= list and the ?periodId= filter
func ParseSubscription(entities, periodID string) (Subscription, error) {
	var sub Subscription
	for _, name := range strings.Split(entities, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sub.Entities = append(sub.Entities, EntityType(name))
	}
	if periodID != "" {
		id, err := uuid.Parse(periodID)
		if err != nil {
			return Subscription{}, fmt.Errorf("%w: period id %q", ErrInvalidSubscription, periodID)
		}
		sub.PeriodID = &id
	}
	if err := sub.Validate(); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// Validate rejects entities clients cannot subscribe to
func (s Subscription) Validate() error {
	for _, entity := range s.Entities {
		if !knownEntities[entity] {
			return fmt.Errorf("%w: unknown entity %q", ErrInvalidSubscription, entity)
		}
	}
	if s.PeriodID != nil && *s.PeriodID == uuid.Nil {
		return fmt.Errorf("%w: empty period id", ErrInvalidSubscription)
	}
	return nil
}

// Matches reports whether the event passes both filters
func (s Subscription) Matches(e Event) bool {
	if len(s.Entities) > 0 && !slices.Contains(s.Entities, e.Entity) {
		return false
	}
	if s.PeriodID != nil {
		return e.PeriodID != nil && *e.PeriodID == *s.PeriodID
	}
	return true
}
