package service

import (
	"context"

	"earnhub/events"
	"earnhub/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByIDForUpdate retrieves a user by id and locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByReferralCode retrieves the owner of a referral code
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)

	// ReferralCodeExists reports whether a referral code is already assigned
	ReferralCodeExists(ctx context.Context, code string) (bool, error)

	// Create inserts a new user row
	Create(ctx context.Context, user *models.User) error

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, id uuid.UUID, newBalance int64) error

	// SetBalanceAndWatermark sets the balance and the referral sync watermark together
	SetBalanceAndWatermark(ctx context.Context, id uuid.UUID, newBalance, watermark int64) error

	// IncrementReferralCount adds one to the referrer's materialized referral count
	IncrementReferralCount(ctx context.Context, id uuid.UUID) error

	// AddReferralBalance credits the referrer's materialized referral balance
	AddReferralBalance(ctx context.Context, id uuid.UUID, amount int64) error

	// ReconcileReferralCounters recomputes referral counters from the ledger
	// and returns the number of users that were corrected
	ReconcileReferralCounters(ctx context.Context) (int64, error)
}

// IdentityRepository defines the interface for login credentials
type IdentityRepository interface {
	// Create stores a new identity, failing with ErrEmailTaken on duplicates
	Create(ctx context.Context, identity *models.AuthIdentity) error

	// GetByEmail retrieves an identity by email
	GetByEmail(ctx context.Context, email string) (*models.AuthIdentity, error)
}

// ReferralRepository defines the interface for the referral ledger
type ReferralRepository interface {
	// Create inserts a PENDING ledger entry
	Create(ctx context.Context, referral *models.Referral) error

	// ListByReferrer returns the referrer's ledger entries, newest first
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralWithUser, error)

	// CountByReferrer returns completed and pending entry counts for a referrer
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (completed int64, pending int64, err error)

	// CompletePendingForReferred moves every PENDING entry of the referred user to
	// COMPLETED and returns the entries that transitioned
	CompletePendingForReferred(ctx context.Context, referredID uuid.UUID) ([]*models.Referral, error)

	// CountCompletedForReferred counts COMPLETED entries naming the user as referred
	CountCompletedForReferred(ctx context.Context, referredID uuid.UUID) (int64, error)

	// SummaryForReferrer aggregates all ledger entries of a referrer
	SummaryForReferrer(ctx context.Context, referrerID uuid.UUID) (*models.ReferralCounts, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// StatsCache caches referral stats per referrer
type StatsCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error)
	Set(ctx context.Context, stats *models.ReferralStats) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// SignupInput carries the fields of a signup request
type SignupInput struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

// SignupService defines the interface for account creation
type SignupService interface {
	// Signup creates the identity, user row and optional referral entry atomically
	Signup(ctx context.Context, input SignupInput) (*models.User, error)
}

// BalanceService defines the interface for balance reads and writes
type BalanceService interface {
	// GetBalance returns the server-side balance of a user
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.BalanceSnapshot, error)

	// Sync merges a client-held balance and watermark with the server state
	Sync(ctx context.Context, userID uuid.UUID, clientBalance, clientWatermark int64) (*models.SyncResult, error)

	// SetBalance overwrites a user's balance
	SetBalance(ctx context.Context, userID uuid.UUID, balance int64) (int64, error)
}

// QualificationService defines the interface for referral qualification
type QualificationService interface {
	// Evaluate reports qualification progress without changing the ledger
	Evaluate(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error)

	// Check evaluates the user and completes their pending referral entries when qualified
	Check(ctx context.Context, userID uuid.UUID) (*models.QualificationResult, error)
}

// ReferralStatsService defines the interface for referrer dashboards
type ReferralStatsService interface {
	GetReferralStats(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error)
}

// UserService defines the interface for account reads and maintenance
type UserService interface {
	// Authenticate verifies credentials and returns the matching user
	Authenticate(ctx context.Context, email, password string) (*models.User, error)

	// GetProfile returns a user with referral totals computed from the ledger
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)

	// ReconcileReferralCounters repairs drifted referral counters
	ReconcileReferralCounters(ctx context.Context) (int64, error)
}

// UnitOfWork manages a transaction and the repositories bound to it
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	IdentityRepository() IdentityRepository
	ReferralRepository() ReferralRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
