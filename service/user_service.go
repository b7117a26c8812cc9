package service

import (
	"context"
	"fmt"
	"strings"

	"earnhub/auth"
	"earnhub/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// userService implements the UserService interface
type userService struct {
	uowFactory    UnitOfWorkFactory
	checkPassword func(hash, password string) bool
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory) UserService {
	return &userService{
		uowFactory:    uowFactory,
		checkPassword: auth.CheckPassword,
	}
}

// Authenticate verifies credentials and returns the matching user
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	identity, err := uow.IdentityRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	if identity == nil || !s.checkPassword(identity.PasswordHash, password) {
		return nil, ErrUnauthorized
	}

	user, err := uow.UserRepository().GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// GetProfile returns a user with referral totals computed from processed ledger rows
func (s *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
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

	summary, err := uow.ReferralRepository().SummaryForReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize referrals: %w", err)
	}

	return &models.UserProfile{
		User:            user,
		ReferralCount:   summary.Total,
		ReferralBalance: summary.ProcessedTotal,
	}, nil
}

// ReconcileReferralCounters rewrites drifted referral counters from the ledger
func (s *userService) ReconcileReferralCounters(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	corrected, err := uow.UserRepository().ReconcileReferralCounters(ctx)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if corrected > 0 {
		log.WithField("corrected", corrected).Warn("Reconciled drifted referral counters")
	}

	return corrected, nil
}
