package infrastructure

import (
	"fmt"

	"earnhub/events"
)

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event type to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(eventType events.EventType) string {
	switch eventType {
	case events.EventTypeUserCreated:
		return "users.created"
	case events.EventTypeBalanceChange:
		return "users.balance_changed"
	case events.EventTypeReferralCreated:
		return "referrals.created"
	case events.EventTypeReferralQualified:
		return "referrals.qualified"
	default:
		return fmt.Sprintf("unknown.%s", eventType)
	}
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	all := events.AllEventTypes()
	subjects := make([]string, 0, len(all))
	for _, eventType := range all {
		subjects = append(subjects, m.MapEventToSubject(eventType))
	}
	return subjects
}
