package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"earnhub/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeUserCreated       EventType = "user_created"
	EventTypeBalanceChange     EventType = "balance_changed"
	EventTypeReferralCreated   EventType = "referral_created"
	EventTypeReferralQualified EventType = "referral_qualified"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// UserCreatedEvent represents a new signup
type UserCreatedEvent struct {
	UserID         uuid.UUID  `json:"user_id"`
	Email          string     `json:"email"`
	ReferralCode   string     `json:"referral_code"`
	ReferredBy     *uuid.UUID `json:"referred_by,omitempty"`
	InitialBalance int64      `json:"initial_balance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          uuid.UUID              `json:"user_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	ChangeAmount    int64                  `json:"change_amount"`
	TransactionType models.TransactionType `json:"transaction_type"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// ReferralCreatedEvent represents a new referral ledger entry
type ReferralCreatedEvent struct {
	ReferralID int64     `json:"referral_id"`
	ReferrerID uuid.UUID `json:"referrer_id"`
	ReferredID uuid.UUID `json:"referred_id"`
	Amount     int64     `json:"amount"`
}

func (e ReferralCreatedEvent) Type() EventType {
	return EventTypeReferralCreated
}

// ReferralQualifiedEvent represents a ledger entry moving to COMPLETED
type ReferralQualifiedEvent struct {
	ReferralID int64     `json:"referral_id"`
	ReferrerID uuid.UUID `json:"referrer_id"`
	ReferredID uuid.UUID `json:"referred_id"`
	Amount     int64     `json:"amount"`
}

func (e ReferralQualifiedEvent) Type() EventType {
	return EventTypeReferralQualified
}

// Handler is a function that handles events. A returned error marks the
// delivery as failed so the event is retried.
type Handler func(ctx context.Context, event Event) error

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Deliver runs every handler registered for the event in order and returns
// the joined handler errors. All handlers run even if an earlier one fails.
func (b *Bus) Deliver(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Delivering event to handlers")

	var errs []error
	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": i,
				"error":        err,
			}).Error("Event handler failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Bus) invoke(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return h(ctx, event)
}

// AllEventTypes lists every event type the service emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeUserCreated,
		EventTypeBalanceChange,
		EventTypeReferralCreated,
		EventTypeReferralQualified,
	}
}
