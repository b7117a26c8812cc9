package repository

import (
	"context"
	"errors"
	"fmt"

	"earnhub/database"
	"earnhub/events"
	"earnhub/models"
	"earnhub/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxNotifier is told when a commit may have added outbox events
type OutboxNotifier interface {
	Notify()
}

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                 *database.DB
	notifier           OutboxNotifier
	tx                 pgx.Tx
	ctx                context.Context
	publisher          *outboxPublisher
	userRepo           service.UserRepository
	identityRepo       service.IdentityRepository
	referralRepo       service.ReferralRepository
	balanceHistoryRepo service.BalanceHistoryRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. notifier may be nil.
func NewUnitOfWorkFactory(db *database.DB, notifier OutboxNotifier) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		notifier: notifier,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	notifier OutboxNotifier
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:       f.db,
		notifier: f.notifier,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.userRepo = newUserRepositoryWithTx(tx)
	u.identityRepo = newIdentityRepositoryWithTx(tx)
	u.referralRepo = newReferralRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.publisher = &outboxPublisher{outbox: NewOutboxRepositoryWithTx(tx)}

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Wake the relay only when this transaction actually wrote events
	if u.notifier != nil && u.publisher.published > 0 {
		u.notifier.Notify()
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil
	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// IdentityRepository returns the identity repository for this unit of work
func (u *unitOfWork) IdentityRepository() service.IdentityRepository {
	if u.identityRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.identityRepo
}

// ReferralRepository returns the referral ledger for this unit of work
func (u *unitOfWork) ReferralRepository() service.ReferralRepository {
	if u.referralRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.referralRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// EventBus returns a publisher that writes events to the outbox inside this transaction
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.publisher == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.publisher
}

// outboxPublisher appends events to the outbox table of the current transaction
type outboxPublisher struct {
	outbox    *OutboxRepository
	published int
}

func (p *outboxPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event)
	if err != nil {
		return err
	}

	record := &models.OutboxEvent{
		EventID:   uuid.New(),
		EventType: string(event.Type()),
		Payload:   payload,
	}
	if err := p.outbox.Append(ctx, record); err != nil {
		return err
	}

	p.published++
	return nil
}
