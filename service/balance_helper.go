package service

import (
	"context"
	"fmt"

	"earnhub/events"
	"earnhub/models"
)

// RecordBalanceChange records a balance history entry and emits a balance
// change event in the same unit of work. Every balance write goes through here.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		ChangeAmount:    history.ChangeAmount,
		TransactionType: history.TransactionType,
	}
	if err := uow.EventBus().Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish balance change: %w", err)
	}

	return nil
}
