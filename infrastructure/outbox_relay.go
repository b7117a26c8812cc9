package infrastructure

import (
	"context"
	"fmt"

	"earnhub/database"
	"earnhub/events"
	"earnhub/metrics"
	"earnhub/models"
	"earnhub/repository"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRelayBatchSize   = 100
	defaultRelayMaxAttempts = 10
)

// OutboxRelay delivers committed outbox events to the in-process bus.
// Delivery is at least once: an event is marked published only after every
// handler returned nil.
type OutboxRelay struct {
	db          *database.DB
	bus         *events.Bus
	metrics     *metrics.Metrics
	batchSize   int
	maxAttempts int
	wake        chan struct{}
}

// NewOutboxRelay creates a relay. m may be nil.
func NewOutboxRelay(db *database.DB, bus *events.Bus, m *metrics.Metrics) *OutboxRelay {
	return &OutboxRelay{
		db:          db,
		bus:         bus,
		metrics:     m,
		batchSize:   defaultRelayBatchSize,
		maxAttempts: defaultRelayMaxAttempts,
		wake:        make(chan struct{}, 1),
	}
}

// Notify wakes the relay loop. It never blocks; notifications that arrive
// while one is already queued collapse into it.
func (r *OutboxRelay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run drains the outbox every time Notify is called until ctx is done
func (r *OutboxRelay) Run(ctx context.Context) {
	log.Info("Outbox relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Outbox relay stopped")
			return
		case <-r.wake:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Outbox drain failed")
			}
		}
	}
}

// Drain delivers batches until the outbox is empty or a batch had failures.
// Stopping on failure leaves the failed rows for the next sweep instead of
// spending all their attempts in one tight loop.
func (r *OutboxRelay) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for {
		claimed, failed, err := r.deliverBatch(ctx)
		delivered += claimed - failed
		if err != nil {
			return delivered, err
		}
		if claimed < r.batchSize || failed > 0 {
			break
		}
	}

	r.refreshPending(ctx)
	return delivered, nil
}

func (r *OutboxRelay) deliverBatch(ctx context.Context) (claimed, failed int, err error) {
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		outbox := repository.NewOutboxRepositoryWithTx(tx)

		batch, err := outbox.ClaimUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(batch)

		for _, record := range batch {
			if deliverErr := r.deliver(ctx, record); deliverErr != nil {
				failed++
				log.WithFields(log.Fields{
					"outboxId":  record.ID,
					"eventId":   record.EventID,
					"eventType": record.EventType,
					"attempt":   record.Attempts + 1,
					"error":     deliverErr,
				}).Warn("Outbox event delivery failed")

				if err := outbox.MarkFailed(ctx, record.ID, deliverErr.Error()); err != nil {
					return err
				}
				r.recordDelivery(record.EventType, false)
				continue
			}

			if err := outbox.MarkPublished(ctx, record.ID); err != nil {
				return err
			}
			r.recordDelivery(record.EventType, true)
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to deliver outbox batch: %w", err)
	}
	return claimed, failed, nil
}

func (r *OutboxRelay) deliver(ctx context.Context, record *models.OutboxEvent) error {
	event, err := events.Decode(record.EventType, record.Payload)
	if err != nil {
		return err
	}
	return r.bus.Deliver(events.WithEventID(ctx, record.EventID), event)
}

func (r *OutboxRelay) recordDelivery(eventType string, ok bool) {
	if r.metrics != nil {
		r.metrics.RecordOutboxDelivery(eventType, ok)
	}
}

func (r *OutboxRelay) refreshPending(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	r.metrics.UpdateDBConnections(r.db.Stat().AcquiredConns())

	pending, err := repository.NewOutboxRepository(r.db).CountPending(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to count pending outbox events")
		return
	}
	r.metrics.SetOutboxPending(pending)
}
