package service

import (
	"context"
	"fmt"

	"earnhub/models"

	"github.com/google/uuid"
)

type balanceService struct {
	uowFactory UnitOfWorkFactory
}

// NewBalanceService creates a new balance service
func NewBalanceService(uowFactory UnitOfWorkFactory) BalanceService {
	return &balanceService{uowFactory: uowFactory}
}

// MaxBalance is the largest balance a user can hold. The users table carries
// the same bound as a check constraint.
const MaxBalance int64 = 1_000_000_000_000_000

// MergeBalances combines a client-held balance with the server balance and
// folds in referral income above the watermark.
//
//	total = max(client, server) + max(0, referral - watermark)
//
// A total above MaxBalance is rejected with ErrInvalidInput.
func MergeBalances(clientBalance, serverBalance, referralBalance, watermark int64) (int64, error) {
	base := max(clientBalance, serverBalance)
	folded := max(0, referralBalance-watermark)
	if base > MaxBalance || folded > MaxBalance-base {
		return 0, fmt.Errorf("%w: merged balance exceeds %d", ErrInvalidInput, MaxBalance)
	}
	return base + folded, nil
}

// GetBalance returns the server-side balance of a user
func (s *balanceService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceSnapshot, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &models.BalanceSnapshot{
		Balance:         user.Balance,
		ReferralBalance: user.ReferralBalance,
	}, nil
}

// Sync merges the client's view of the balance with the server under a row
// lock. The watermark used is the larger of the client's and the one the
// server persisted on the previous sync, so concurrent or replayed syncs
// cannot fold the same referral income twice.
func (s *balanceService) Sync(ctx context.Context, userID uuid.UUID, clientBalance, clientWatermark int64) (*models.SyncResult, error) {
	if clientBalance < 0 || clientWatermark < 0 {
		return nil, fmt.Errorf("%w: balance and watermark must be non-negative", ErrInvalidInput)
	}
	if clientBalance > MaxBalance {
		return nil, fmt.Errorf("%w: balance must be at most %d", ErrInvalidInput, MaxBalance)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	watermark := max(clientWatermark, user.ReferralSyncedAmount)
	folded := max(0, user.ReferralBalance-watermark)
	total, err := MergeBalances(clientBalance, user.Balance, user.ReferralBalance, watermark)
	if err != nil {
		return nil, err
	}
	newWatermark := max(watermark, user.ReferralBalance)

	if err := uow.UserRepository().SetBalanceAndWatermark(ctx, userID, total, newWatermark); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	if total != user.Balance {
		transactionType := models.TransactionTypeSyncMerge
		if folded > 0 {
			transactionType = models.TransactionTypeReferralFold
		}

		history := &models.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   user.Balance,
			BalanceAfter:    total,
			ChangeAmount:    total - user.Balance,
			TransactionType: transactionType,
			TransactionMetadata: map[string]any{
				"client_balance":  clientBalance,
				"folded_referral": folded,
				"watermark":       newWatermark,
			},
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.SyncResult{
		Balance:              total,
		ReferralBalance:      user.ReferralBalance,
		ReferralSyncedAmount: newWatermark,
		FoldedReferral:       folded,
	}, nil
}

// SetBalance overwrites a user's balance. Every call emits a balance change,
// even an unchanged one, so the qualification consumer sees each write.
func (s *balanceService) SetBalance(ctx context.Context, userID uuid.UUID, balance int64) (int64, error) {
	if balance < 0 || balance > MaxBalance {
		return 0, fmt.Errorf("%w: balance must be between 0 and %d", ErrInvalidInput, MaxBalance)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	if err := uow.UserRepository().UpdateBalance(ctx, userID, balance); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    balance,
		ChangeAmount:    balance - user.Balance,
		TransactionType: models.TransactionTypeBalanceSet,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return balance, nil
}
