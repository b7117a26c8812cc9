package repository

import (
	"context"
	"errors"
	"fmt"

	"earnhub/database"
	"earnhub/models"
	"earnhub/service"

	"github.com/jackc/pgx/v5"
)

// IdentityRepository stores login credentials
type IdentityRepository struct {
	q Queryable
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *database.DB) *IdentityRepository {
	return &IdentityRepository{q: db.Pool}
}

func newIdentityRepositoryWithTx(tx Queryable) *IdentityRepository {
	return &IdentityRepository{q: tx}
}

// Create stores a new identity. A duplicate email surfaces as service.ErrEmailTaken.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.AuthIdentity) error {
	query := `
		INSERT INTO auth_identities (user_id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query, identity.UserID, identity.Email, identity.PasswordHash).Scan(&identity.CreatedAt)
	if isUniqueViolation(err, "auth_identities_email_key") {
		return service.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create identity for user %s: %w", identity.UserID, err)
	}

	return nil
}

// GetByEmail retrieves an identity by email
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.AuthIdentity, error) {
	query := `
		SELECT user_id, email, password_hash, created_at
		FROM auth_identities
		WHERE email = $1
	`

	var identity models.AuthIdentity
	err := r.q.QueryRow(ctx, query, email).Scan(
		&identity.UserID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}

	return &identity, nil
}
