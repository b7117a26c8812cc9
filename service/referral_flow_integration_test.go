package service_test

import (
	"context"
	"testing"

	"earnhub/config"
	"earnhub/events"
	"earnhub/infrastructure"
	"earnhub/models"
	"earnhub/repository"
	"earnhub/repository/testutil"
	"earnhub/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReferralFlow_EndToEnd covers signup with a referral code, the
// balance sync that crosses the threshold, delivery of the resulting event
// through the outbox, and the referrer folding the earned bonus in.
func TestReferralFlow_EndToEnd(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	relay := infrastructure.NewOutboxRelay(testDB.DB, bus, nil)
	factory := repository.NewUnitOfWorkFactory(testDB.DB, relay)

	signup := service.NewSignupService(factory)
	balances := service.NewBalanceService(factory)
	qualification := service.NewQualificationService(factory)
	stats := service.NewReferralStatsService(factory, nil)
	users := service.NewUserService(factory)

	bus.Subscribe(events.EventTypeBalanceChange, service.NewQualificationHandler(qualification))

	referrer, err := signup.Signup(ctx, service.SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw-ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), referrer.Balance)

	referred, err := signup.Signup(ctx, service.SignupInput{
		Name:         "Bo",
		Email:        "BO@example.com",
		Password:     "pw-bo",
		ReferralCode: " " + referrer.ReferralCode + " ",
	})
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)
	assert.Equal(t, "bo@example.com", referred.Email)

	// Signup events are delivered but nothing qualifies yet
	_, err = relay.Drain(ctx)
	require.NoError(t, err)

	s, err := stats.GetReferralStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ReferralCount)
	assert.Equal(t, int64(1), s.PendingCount)
	assert.Zero(t, s.ReferralBalance)

	progress, err := qualification.Evaluate(ctx, referred.ID)
	require.NoError(t, err)
	assert.False(t, progress.Qualified)
	assert.Equal(t, int64(10000), progress.BalanceNeeded)
	assert.Equal(t, int64(1), progress.ReferralsNeeded)

	// The referred user earns enough to qualify
	_, err = balances.Sync(ctx, referred.ID, 60000, 0)
	require.NoError(t, err)

	_, err = relay.Drain(ctx)
	require.NoError(t, err)

	s, err = stats.GetReferralStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.CompletedCount)
	assert.Zero(t, s.PendingCount)
	assert.Equal(t, int64(10000), s.ReferralBalance)
	require.Len(t, s.Referrals, 1)
	assert.Equal(t, models.ReferralStatusCompleted, s.Referrals[0].Status)

	// Qualification is idempotent
	again, err := qualification.Check(ctx, referred.ID)
	require.NoError(t, err)
	assert.True(t, again.Qualified)
	assert.Zero(t, again.NewlyCompleted)
	assert.Equal(t, int64(1), again.CompletedReferrals)

	// The referrer folds the bonus in exactly once
	synced, err := balances.Sync(ctx, referrer.ID, 50000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), synced.Balance)
	assert.Equal(t, int64(10000), synced.ReferralSyncedAmount)

	synced, err = balances.Sync(ctx, referrer.ID, 50000, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), synced.Balance)

	profile, err := users.GetProfile(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.ReferralCount)
	assert.Equal(t, int64(10000), profile.ReferralBalance)

	authed, err := users.Authenticate(ctx, "ADA@example.com", "pw-ada")
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, authed.ID)

	_, err = users.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestReferralFlow_ReconcileRepairsDrift(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := repository.NewUnitOfWorkFactory(testDB.DB, nil)
	signup := service.NewSignupService(factory)
	users := service.NewUserService(factory)

	referrer, err := signup.Signup(ctx, service.SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = signup.Signup(ctx, service.SignupInput{Name: "Bo", Email: "bo@example.com", Password: "pw", ReferralCode: referrer.ReferralCode})
	require.NoError(t, err)

	_, err = testDB.DB.Exec(ctx, `UPDATE users SET referral_count = 7, referral_balance = 999 WHERE id = $1`, referrer.ID)
	require.NoError(t, err)

	corrected, err := users.ReconcileReferralCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), corrected)

	user, err := repository.NewUserRepository(testDB.DB).GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ReferralCount)
	assert.Zero(t, user.ReferralBalance)

	corrected, err = users.ReconcileReferralCounters(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)
}
