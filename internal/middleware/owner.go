package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// OwnerIDKey is the context key for the caller's owner id
	OwnerIDKey contextKey = "owner_id"
)

// OwnerQueryParam is accepted in place of the header where clients cannot set headers (websocket upgrades)
const OwnerQueryParam = "owner_id"

// OwnerID returns an Echo middleware that reads the owner id from a trusted header set by the
// gateway in front of the service and injects it into the request context.
func OwnerID(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(header))
			if raw == "" {
				raw = strings.TrimSpace(c.QueryParam(OwnerQueryParam))
			}
			if raw == "" {
				return unauthorizedError(c, "missing owner identity")
			}

			ownerID, err := uuid.Parse(raw)
			if err != nil || ownerID == uuid.Nil {
				log.Debug().Str("owner_id", raw).Msg("Rejected malformed owner id")
				return unauthorizedError(c, "invalid owner identity")
			}

			ctx := context.WithValue(c.Request().Context(), OwnerIDKey, ownerID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetOwnerID extracts the owner id from the context
func GetOwnerID(c echo.Context) uuid.UUID {
	if id, ok := c.Request().Context().Value(OwnerIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithOwnerID returns a copy of ctx carrying ownerID (used by tests and background jobs)
func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, OwnerIDKey, ownerID)
}
