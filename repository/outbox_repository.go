package repository

import (
	"context"
	"fmt"

	"earnhub/database"
	"earnhub/models"

	"github.com/jackc/pgx/v5"
)

// OutboxRepository persists domain events alongside the state changes that produce them
type OutboxRepository struct {
	q Queryable
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *database.DB) *OutboxRepository {
	return &OutboxRepository{q: db.Pool}
}

// NewOutboxRepositoryWithTx binds an outbox repository to an open transaction.
// The relay claims rows with it so locks last for the whole delivery.
func NewOutboxRepositoryWithTx(tx pgx.Tx) *OutboxRepository {
	return &OutboxRepository{q: tx}
}

// Append stores a new unpublished event
func (r *OutboxRepository) Append(ctx context.Context, event *models.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (event_id, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, attempts, created_at
	`

	err := r.q.QueryRow(ctx, query, event.EventID, event.EventType, []byte(event.Payload)).Scan(
		&event.ID,
		&event.Attempts,
		&event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append %s event to outbox: %w", event.EventType, err)
	}

	return nil
}

// ClaimUnpublished locks up to limit unpublished events that have been tried
// fewer than maxAttempts times. Rows locked by a concurrent relay are skipped.
func (r *OutboxRepository) ClaimUnpublished(ctx context.Context, limit, maxAttempts int) ([]*models.OutboxEvent, error) {
	query := `
		SELECT id, event_id, event_type, payload, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $2
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.q.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}

	claimed, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.OutboxEvent, error) {
		var event models.OutboxEvent
		var payload []byte
		err := row.Scan(
			&event.ID,
			&event.EventID,
			&event.EventType,
			&payload,
			&event.Attempts,
			&event.LastError,
			&event.CreatedAt,
			&event.PublishedAt,
		)
		event.Payload = payload
		return &event, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan outbox events: %w", err)
	}

	return claimed, nil
}

// MarkPublished records a successful delivery
func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	_, err := r.q.Exec(ctx,
		`UPDATE outbox_events SET published_at = NOW(), attempts = attempts + 1, last_error = NULL WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d published: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, cause)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d failed: %w", id, err)
	}
	return nil
}

// CountPending returns the number of events still waiting for delivery
func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}
