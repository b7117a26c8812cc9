package service

import (
	"context"
	"fmt"

	"earnhub/config"
	"earnhub/events"
	"earnhub/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type qualificationService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
}

// NewQualificationService creates a new qualification service
func NewQualificationService(uowFactory UnitOfWorkFactory) QualificationService {
	return &qualificationService{
		uowFactory: uowFactory,
		config:     config.Get(),
	}
}

// EvaluateProgress computes qualification and progress for a balance.
// Progress fields stay zero once the user qualifies.
func EvaluateProgress(balance int64, cfg *config.Config) models.QualificationResult {
	result := models.QualificationResult{
		UserBalance: balance,
		Qualified:   balance >= cfg.QualificationThreshold(),
	}
	if result.Qualified {
		return result
	}

	result.EarnedAmount = max(balance-cfg.StartingBalance, 0)
	result.EarningsNeeded = max(cfg.QualificationEarnings-result.EarnedAmount, 0)
	result.BalanceNeeded = max(cfg.QualificationThreshold()-balance, 0)
	result.ReferralsNeeded = (result.EarningsNeeded + cfg.ReferralBonus - 1) / cfg.ReferralBonus

	return result
}

// Evaluate reports qualification progress without touching the ledger
func (s *qualificationService) Evaluate(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error) {
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

	result := EvaluateProgress(user.Balance, s.config)
	result.UserID = userID

	result.CompletedReferrals, err = uow.ReferralRepository().CountCompletedForReferred(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed referrals: %w", err)
	}

	return &result, nil
}

// Check evaluates the user and, once qualified, completes every PENDING entry
// naming them as the referred party and credits each referrer. The status
// predicate on the ledger update makes repeated checks no-ops.
func (s *qualificationService) Check(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the user so concurrent checks serialize on the same row
	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	result := EvaluateProgress(user.Balance, s.config)
	result.UserID = userID

	if result.Qualified {
		completed, err := uow.ReferralRepository().CompletePendingForReferred(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to complete referrals: %w", err)
		}

		for _, referral := range completed {
			if err := uow.UserRepository().AddReferralBalance(ctx, referral.ReferrerID, referral.Amount); err != nil {
				return nil, fmt.Errorf("failed to credit referrer: %w", err)
			}

			event := events.ReferralQualifiedEvent{
				ReferralID: referral.ID,
				ReferrerID: referral.ReferrerID,
				ReferredID: referral.ReferredID,
				Amount:     referral.Amount,
			}
			if err := uow.EventBus().Publish(ctx, event); err != nil {
				return nil, fmt.Errorf("failed to publish referral qualified event: %w", err)
			}
		}
		result.NewlyCompleted = int64(len(completed))
	}

	result.CompletedReferrals, err = uow.ReferralRepository().CountCompletedForReferred(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed referrals: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if result.NewlyCompleted > 0 {
		log.WithFields(log.Fields{
			"userID":         userID,
			"balance":        user.Balance,
			"newlyCompleted": result.NewlyCompleted,
		}).Info("Referrals qualified")
	}

	return &result, nil
}
