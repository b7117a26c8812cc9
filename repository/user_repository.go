package repository

import (
	"context"
	"errors"
	"fmt"

	"earnhub/database"
	"earnhub/models"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, name, email, balance, referral_code, referred_by,
	referral_count, referral_balance, referral_synced_amount,
	created_at, updated_at
`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Balance,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.ReferralCount,
		&user.ReferralBalance,
		&user.ReferralSyncedAmount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user and holds a row lock until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetByReferralCode retrieves the owner of a referral code
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code %s: %w", code, err)
	}
	return user, nil
}

// ReferralCodeExists reports whether a referral code is already assigned
func (r *UserRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code %s: %w", code, err)
	}
	return exists, nil
}

// Create inserts a new user. ID, name, email, balance, referral code and
// referrer come from the caller; counters start at zero.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, balance, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING referral_count, referral_balance, referral_synced_amount, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Balance,
		user.ReferralCode,
		user.ReferredBy,
	).Scan(
		&user.ReferralCount,
		&user.ReferralBalance,
		&user.ReferralSyncedAmount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return service.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}

	return nil
}

func (r *UserRepository) execForUser(ctx context.Context, id uuid.UUID, action, query string, args ...any) error {
	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s for user %s: %w", action, id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}

	return nil
}

// UpdateBalance sets a user's balance
func (r *UserRepository) UpdateBalance(ctx context.Context, id uuid.UUID, newBalance int64) error {
	return r.execForUser(ctx, id, "update balance",
		`UPDATE users SET balance = $1, updated_at = NOW() WHERE id = $2`,
		newBalance, id)
}

// SetBalanceAndWatermark sets the balance and the referral sync watermark in one statement
func (r *UserRepository) SetBalanceAndWatermark(ctx context.Context, id uuid.UUID, newBalance, watermark int64) error {
	return r.execForUser(ctx, id, "sync balance",
		`UPDATE users SET balance = $1, referral_synced_amount = $2, updated_at = NOW() WHERE id = $3`,
		newBalance, watermark, id)
}

// IncrementReferralCount adds one to the materialized referral count
func (r *UserRepository) IncrementReferralCount(ctx context.Context, id uuid.UUID) error {
	return r.execForUser(ctx, id, "increment referral count",
		`UPDATE users SET referral_count = referral_count + 1, updated_at = NOW() WHERE id = $1`,
		id)
}

// AddReferralBalance credits the materialized referral balance
func (r *UserRepository) AddReferralBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	return r.execForUser(ctx, id, "add referral balance",
		`UPDATE users SET referral_balance = referral_balance + $1, updated_at = NOW() WHERE id = $2`,
		amount, id)
}

// ReconcileReferralCounters rewrites referral_count and referral_balance from
// the ledger for every user whose counters drifted.
//
// Drifted users are locked first, skipping rows another transaction holds,
// and the ledger is recomputed in a second statement. Under read committed
// that statement takes a fresh snapshot, so a credit committed while the
// candidates were being locked is counted instead of overwritten. Run it
// inside a transaction so the locks span both statements.
func (r *UserRepository) ReconcileReferralCounters(ctx context.Context) (int64, error) {
	lockQuery := `
		SELECT u.id
		FROM users u
		WHERE u.referral_count <> (
				SELECT COUNT(*) FROM referrals rf WHERE rf.referrer_id = u.id)
		   OR u.referral_balance <> (
				SELECT COALESCE(SUM(rf.amount), 0) FROM referrals rf
				WHERE rf.referrer_id = u.id AND rf.status = 'COMPLETED')
		ORDER BY u.id
		FOR UPDATE OF u SKIP LOCKED
	`

	rows, err := r.q.Query(ctx, lockQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to lock drifted referral counters: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return 0, fmt.Errorf("failed to lock drifted referral counters: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	updateQuery := `
		WITH ledger AS (
			SELECT
				u.id,
				COUNT(rf.id) AS referral_count,
				COALESCE(SUM(rf.amount) FILTER (WHERE rf.status = 'COMPLETED'), 0) AS referral_balance
			FROM users u
			LEFT JOIN referrals rf ON rf.referrer_id = u.id
			WHERE u.id = ANY($1::uuid[])
			GROUP BY u.id
		)
		UPDATE users u
		SET referral_count = ledger.referral_count,
		    referral_balance = ledger.referral_balance,
		    updated_at = NOW()
		FROM ledger
		WHERE u.id = ledger.id
		  AND (u.referral_count <> ledger.referral_count OR u.referral_balance <> ledger.referral_balance)
	`

	result, err := r.q.Exec(ctx, updateQuery, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile referral counters: %w", err)
	}

	return result.RowsAffected(), nil
}
