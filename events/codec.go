package events

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an event payload for the outbox
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type(), err)
	}
	return data, nil
}

// Decode rebuilds an event from its type name and JSON payload
func Decode(eventType string, payload []byte) (Event, error) {
	switch EventType(eventType) {
	case EventTypeUserCreated:
		var e UserCreatedEvent
		return decodeInto(&e, payload, func() Event { return e })
	case EventTypeBalanceChange:
		var e BalanceChangeEvent
		return decodeInto(&e, payload, func() Event { return e })
	case EventTypeReferralCreated:
		var e ReferralCreatedEvent
		return decodeInto(&e, payload, func() Event { return e })
	case EventTypeReferralQualified:
		var e ReferralQualifiedEvent
		return decodeInto(&e, payload, func() Event { return e })
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

func decodeInto(dst any, payload []byte, result func() Event) (Event, error) {
	if err := json.Unmarshal(payload, dst); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}
	return result(), nil
}
