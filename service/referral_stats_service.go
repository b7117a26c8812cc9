package service

import (
	"context"
	"fmt"

	"earnhub/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type referralStatsService struct {
	uowFactory UnitOfWorkFactory
	cache      StatsCache
}

// NewReferralStatsService creates a new referral stats service. cache may be nil.
func NewReferralStatsService(uowFactory UnitOfWorkFactory, cache StatsCache) ReferralStatsService {
	return &referralStatsService{
		uowFactory: uowFactory,
		cache:      cache,
	}
}

// GetReferralStats returns the referrer's dashboard. Counts and the referral
// balance are computed from the ledger rather than the user's counters.
func (s *referralStatsService) GetReferralStats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("userID", userID).Warn("Referral stats cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			log.WithError(err).WithField("userID", userID).Warn("Referral stats cache write failed")
		}
	}

	return stats, nil
}

func (s *referralStatsService) load(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
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

	referrals, err := uow.ReferralRepository().ListByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}

	completed, pending, err := uow.ReferralRepository().CountByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}

	var referralBalance int64
	for _, r := range referrals {
		if r.Status == models.ReferralStatusCompleted {
			referralBalance += r.Amount
		}
	}

	if referrals == nil {
		referrals = []*models.ReferralWithUser{}
	}

	return &models.ReferralStats{
		UserID:          userID,
		ReferralCode:    user.ReferralCode,
		ReferralCount:   int64(len(referrals)),
		ReferralBalance: referralBalance,
		CompletedCount:  completed,
		PendingCount:    pending,
		Referrals:       referrals,
	}, nil
}
