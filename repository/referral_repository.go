package repository

import (
	"context"
	"fmt"

	"earnhub/database"
	"earnhub/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReferralRepository implements the referral ledger
type ReferralRepository struct {
	q Queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) *ReferralRepository {
	return &ReferralRepository{q: db.Pool}
}

func newReferralRepositoryWithTx(tx Queryable) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Create inserts a PENDING ledger entry with the caller's amount
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (referrer_id, referred_id, status, amount)
		VALUES ($1, $2, 'PENDING', $3)
		RETURNING id, status, processed, created_at
	`

	err := r.q.QueryRow(ctx, query, referral.ReferrerID, referral.ReferredID, referral.Amount).Scan(
		&referral.ID,
		&referral.Status,
		&referral.Processed,
		&referral.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create referral %s -> %s: %w", referral.ReferrerID, referral.ReferredID, err)
	}

	return nil
}

// ListByReferrer returns the referrer's ledger entries joined with the referred user, newest first
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*models.ReferralWithUser, error) {
	query := `
		SELECT rf.id, rf.referrer_id, rf.referred_id, rf.status, rf.amount, rf.processed,
		       rf.created_at, rf.completed_at, u.name, u.email
		FROM referrals rf
		JOIN users u ON u.id = rf.referred_id
		WHERE rf.referrer_id = $1
		ORDER BY rf.created_at DESC, rf.id DESC
	`

	rows, err := r.q.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals for %s: %w", referrerID, err)
	}
	defer rows.Close()

	referrals := []*models.ReferralWithUser{}
	for rows.Next() {
		var rw models.ReferralWithUser
		err := rows.Scan(
			&rw.ID,
			&rw.ReferrerID,
			&rw.ReferredID,
			&rw.Status,
			&rw.Amount,
			&rw.Processed,
			&rw.CreatedAt,
			&rw.CompletedAt,
			&rw.ReferredName,
			&rw.ReferredEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, &rw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrals: %w", err)
	}

	return referrals, nil
}

// CountByReferrer returns completed and pending entry counts for a referrer
func (r *ReferralRepository) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, int64, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'PENDING')
		FROM referrals
		WHERE referrer_id = $1
	`

	var completed, pending int64
	if err := r.q.QueryRow(ctx, query, referrerID).Scan(&completed, &pending); err != nil {
		return 0, 0, fmt.Errorf("failed to count referrals for %s: %w", referrerID, err)
	}

	return completed, pending, nil
}

// CompletePendingForReferred flips every PENDING entry of the referred user to
// COMPLETED and marks it processed. Entries already COMPLETED are untouched,
// so repeated calls return an empty slice.
func (r *ReferralRepository) CompletePendingForReferred(ctx context.Context, referredID uuid.UUID) ([]*models.Referral, error) {
	query := `
		UPDATE referrals
		SET status = 'COMPLETED', processed = TRUE, completed_at = NOW()
		WHERE referred_id = $1 AND status = 'PENDING'
		RETURNING id, referrer_id, referred_id, status, amount, processed, created_at, completed_at
	`

	rows, err := r.q.Query(ctx, query, referredID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete referrals for %s: %w", referredID, err)
	}

	completed, err := pgx.CollectRows(rows, scanReferral)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed referrals: %w", err)
	}

	return completed, nil
}

func scanReferral(row pgx.CollectableRow) (*models.Referral, error) {
	var referral models.Referral
	err := row.Scan(
		&referral.ID,
		&referral.ReferrerID,
		&referral.ReferredID,
		&referral.Status,
		&referral.Amount,
		&referral.Processed,
		&referral.CreatedAt,
		&referral.CompletedAt,
	)
	return &referral, err
}

// CountCompletedForReferred counts COMPLETED entries naming the user as referred
func (r *ReferralRepository) CountCompletedForReferred(ctx context.Context, referredID uuid.UUID) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referred_id = $1 AND status = 'COMPLETED'`,
		referredID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed referrals for %s: %w", referredID, err)
	}
	return count, nil
}

// SummaryForReferrer aggregates every ledger entry of a referrer
func (r *ReferralRepository) SummaryForReferrer(ctx context.Context, referrerID uuid.UUID) (*models.ReferralCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(SUM(amount) FILTER (WHERE processed), 0)
		FROM referrals
		WHERE referrer_id = $1
	`

	var counts models.ReferralCounts
	err := r.q.QueryRow(ctx, query, referrerID).Scan(
		&counts.Total,
		&counts.Completed,
		&counts.Pending,
		&counts.CompletedTotal,
		&counts.ProcessedTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize referrals for %s: %w", referrerID, err)
	}

	return &counts, nil
}
