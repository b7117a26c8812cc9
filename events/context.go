package events

import (
	"context"

	"github.com/google/uuid"
)

type eventIDKey struct{}

// WithEventID attaches the durable id of the event being delivered
func WithEventID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventIDFromContext returns the id set by WithEventID, if any
func EventIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(eventIDKey{}).(uuid.UUID)
	return id, ok
}
