package service

import (
	"context"
	"fmt"

	"earnhub/config"
	"earnhub/events"

	log "github.com/sirupsen/logrus"
)

// NewQualificationHandler reacts to balance changes that reach the
// qualification threshold by running a qualification check. Check is
// idempotent, so redelivered events are harmless.
func NewQualificationHandler(qualification QualificationService) events.Handler {
	cfg := config.Get()
	return func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.BalanceChangeEvent)
		if !ok {
			return fmt.Errorf("unexpected event type %T", event)
		}
		if e.NewBalance < cfg.QualificationThreshold() {
			return nil
		}

		result, err := qualification.Check(ctx, e.UserID)
		if err != nil {
			return fmt.Errorf("qualification check for %s failed: %w", e.UserID, err)
		}

		log.WithFields(log.Fields{
			"userID":         e.UserID,
			"balance":        e.NewBalance,
			"newlyCompleted": result.NewlyCompleted,
		}).Debug("Qualification check after balance change")
		return nil
	}
}

// NewStatsInvalidationHandler drops cached referral stats of the referrer
// whenever their ledger changes
func NewStatsInvalidationHandler(cache StatsCache) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		switch e := event.(type) {
		case events.ReferralCreatedEvent:
			return cache.Invalidate(ctx, e.ReferrerID)
		case events.ReferralQualifiedEvent:
			return cache.Invalidate(ctx, e.ReferrerID)
		}
		return nil
	}
}
