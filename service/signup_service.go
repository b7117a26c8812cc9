package service

import (
	"context"
	"fmt"
	"strings"

	"earnhub/auth"
	"earnhub/config"
	"earnhub/events"
	"earnhub/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type signupService struct {
	uowFactory   UnitOfWorkFactory
	config       *config.Config
	generateCode CodeGenerator
	hashPassword func(string) (string, error)
}

// NewSignupService creates a new signup service
func NewSignupService(uowFactory UnitOfWorkFactory) SignupService {
	return &signupService{
		uowFactory:   uowFactory,
		config:       config.Get(),
		generateCode: GenerateReferralCode,
		hashPassword: auth.HashPassword,
	}
}

// Signup creates the identity, the user row and, when the referral code
// resolves, one PENDING ledger entry plus the referrer's count. It all
// commits or rolls back together.
func (s *signupService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users := uow.UserRepository()

	code, err := uniqueReferralCode(ctx, users, s.generateCode)
	if err != nil {
		return nil, fmt.Errorf("failed to generate referral code: %w", err)
	}

	referrer, err := s.resolveReferrer(ctx, users, input.ReferralCode)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Balance:      s.config.StartingBalance,
		ReferralCode: code,
	}
	if referrer != nil {
		user.ReferredBy = &referrer.ID
	}

	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	identity := &models.AuthIdentity{
		UserID:       user.ID,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := uow.IdentityRepository().Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:          user.ID,
		BalanceBefore:   0,
		BalanceAfter:    user.Balance,
		ChangeAmount:    user.Balance,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"name": name,
		},
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record initial balance history: %w", err)
	}

	created := events.UserCreatedEvent{
		UserID:         user.ID,
		Email:          user.Email,
		ReferralCode:   user.ReferralCode,
		ReferredBy:     user.ReferredBy,
		InitialBalance: user.Balance,
	}
	if err := uow.EventBus().Publish(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to publish user created event: %w", err)
	}

	if referrer != nil {
		if err := s.recordReferral(ctx, uow, referrer, user); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	fields := log.Fields{
		"userID":       user.ID,
		"referralCode": user.ReferralCode,
	}
	if referrer != nil {
		fields["referrerID"] = referrer.ID
	}
	log.WithFields(fields).Info("User signed up")

	return user, nil
}

// resolveReferrer returns nil when no code was given or the code is unknown.
// An unknown code does not fail the signup.
func (s *signupService) resolveReferrer(ctx context.Context, users UserRepository, rawCode string) (*models.User, error) {
	code := NormalizeReferralCode(rawCode)
	if code == "" {
		return nil, nil
	}

	referrer, err := users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	if referrer == nil {
		log.WithField("referralCode", code).Info("Ignoring unknown referral code")
	}

	return referrer, nil
}

func (s *signupService) recordReferral(ctx context.Context, uow UnitOfWork, referrer, referred *models.User) error {
	referral := &models.Referral{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		Status:     models.ReferralStatusPending,
		Amount:     s.config.ReferralBonus,
	}
	if err := uow.ReferralRepository().Create(ctx, referral); err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}

	// The referral balance is credited when the entry completes, not here
	if err := uow.UserRepository().IncrementReferralCount(ctx, referrer.ID); err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}

	event := events.ReferralCreatedEvent{
		ReferralID: referral.ID,
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
		Amount:     referral.Amount,
	}
	if err := uow.EventBus().Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish referral created event: %w", err)
	}

	return nil
}
