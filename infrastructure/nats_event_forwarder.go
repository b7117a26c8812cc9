package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"earnhub/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MessagePublisher defines the interface for publishing messages to a message bus
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
}

// EventEnvelope wraps a domain event on the wire
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventForwarder forwards delivered outbox events to NATS
type NATSEventForwarder struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	now           func() time.Time
}

// NewNATSEventForwarder creates a new forwarder
func NewNATSEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *NATSEventForwarder {
	return &NATSEventForwarder{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		now:           time.Now,
	}
}

// Handle is an events.Handler. The outbox event id, when present on ctx,
// becomes both the envelope id and the JetStream dedupe id so redelivery
// after a failed mark does not duplicate the message downstream.
func (f *NATSEventForwarder) Handle(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event)
	if err != nil {
		return err
	}

	eventID, ok := events.EventIDFromContext(ctx)
	if !ok {
		eventID = uuid.New()
	}

	envelope := EventEnvelope{
		EventID:       eventID.String(),
		EventType:     string(event.Type()),
		Timestamp:     f.now().UTC(),
		SourceService: "earnhub",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := f.subjectMapper.MapEventToSubject(event.Type())
	if err := f.publisher.Publish(ctx, subject, data, envelope.EventID); err != nil {
		return fmt.Errorf("failed to forward %s event: %w", event.Type(), err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")

	return nil
}
