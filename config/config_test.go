package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DATABASE_URL", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(50000), cfg.StartingBalance)
	assert.Equal(t, int64(10000), cfg.ReferralBonus)
	assert.Equal(t, int64(10000), cfg.QualificationEarnings)
	assert.Equal(t, int64(60000), cfg.QualificationThreshold())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("STARTING_BALANCE", "100000")
	t.Setenv("QUALIFICATION_EARNINGS", "20000")
	t.Setenv("STATS_CACHE_TTL", "5s")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(100000), cfg.StartingBalance)
	assert.Equal(t, int64(120000), cfg.QualificationThreshold())
	assert.Equal(t, 5*time.Second, cfg.StatsCacheTTL)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("REFERRAL_BONUS", "ten")

	_, err := load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "REFERRAL_BONUS")
}

func TestLoad_RequiresDatabaseOutsideTests(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "")

	_, err := load()
	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestSetTestConfig(t *testing.T) {
	t.Cleanup(ResetConfig)

	custom := NewTestConfig()
	custom.StartingBalance = 1
	SetTestConfig(custom)

	assert.Same(t, custom, Get())
}
