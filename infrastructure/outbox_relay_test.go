package infrastructure

import (
	"context"
	"errors"
	"testing"

	"earnhub/events"
	"earnhub/metrics"
	"earnhub/repository"
	"earnhub/repository/testutil"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishInTx(t *testing.T, testDB *testutil.TestDatabase, evts ...events.Event) {
	t.Helper()
	ctx := context.Background()

	uow := repository.NewUnitOfWorkFactory(testDB.DB, nil).Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	for _, e := range evts {
		require.NoError(t, uow.EventBus().Publish(ctx, e))
	}
	require.NoError(t, uow.Commit())
}

func TestOutboxRelay_DeliversAndMarksPublished(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var seen []events.Event
	var ids []uuid.UUID
	bus.SubscribeAll(func(ctx context.Context, e events.Event) error {
		seen = append(seen, e)
		id, _ := events.EventIDFromContext(ctx)
		ids = append(ids, id)
		return nil
	})

	userID := uuid.New()
	publishInTx(t, testDB,
		events.UserCreatedEvent{UserID: userID, Email: "a@example.com"},
		events.BalanceChangeEvent{UserID: userID, NewBalance: 50000, ChangeAmount: 50000},
	)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	relay := NewOutboxRelay(testDB.DB, bus, m)

	delivered, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	require.Len(t, seen, 2)
	assert.Equal(t, events.EventTypeUserCreated, seen[0].Type())
	assert.Equal(t, events.EventTypeBalanceChange, seen[1].Type())
	assert.NotEqual(t, uuid.Nil, ids[0])
	assert.NotEqual(t, ids[0], ids[1])

	pending, err := repository.NewOutboxRepository(testDB.DB).CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.OutboxPending))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.OutboxDeliveries.WithLabelValues("user_created", "published")))

	// Nothing left to deliver
	delivered, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Len(t, seen, 2)
}

func TestOutboxRelay_FailedDeliveryIsRetried(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	failures := 1
	calls := 0
	bus.Subscribe(events.EventTypeReferralCreated, func(ctx context.Context, e events.Event) error {
		calls++
		if failures > 0 {
			failures--
			return errors.New("downstream unavailable")
		}
		return nil
	})

	publishInTx(t, testDB, events.ReferralCreatedEvent{ReferralID: 1, ReferrerID: uuid.New(), ReferredID: uuid.New(), Amount: 10000})

	relay := NewOutboxRelay(testDB.DB, bus, nil)

	delivered, err := relay.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)

	outbox := repository.NewOutboxRepository(testDB.DB)
	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	delivered, err = relay.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 2, calls)

	pending, err = outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestOutboxRelay_GivesUpAfterMaxAttempts(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	calls := 0
	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, e events.Event) error {
		calls++
		return errors.New("always fails")
	})

	publishInTx(t, testDB, events.UserCreatedEvent{UserID: uuid.New()})

	relay := NewOutboxRelay(testDB.DB, bus, nil)
	relay.maxAttempts = 2

	for i := 0; i < 4; i++ {
		_, err := relay.Drain(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, calls)
}

func TestOutboxRelay_NotifyDoesNotBlock(t *testing.T) {
	relay := NewOutboxRelay(nil, events.NewBus(), nil)

	relay.Notify()
	relay.Notify()
	relay.Notify()

	assert.Len(t, relay.wake, 1)
}
