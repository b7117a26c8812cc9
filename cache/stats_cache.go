package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"earnhub/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const statsKeyPrefix = "earnhub:referral-stats:"

// StatsCache stores referral stats as JSON under a per-user key
type StatsCache struct {
	client *Client
	ttl    time.Duration
}

// NewStatsCache creates a referral stats cache backed by Redis
func NewStatsCache(client *Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(userID uuid.UUID) string {
	return statsKeyPrefix + userID.String()
}

// Get returns cached stats, or nil on a miss
func (c *StatsCache) Get(ctx context.Context, userID uuid.UUID) (*models.ReferralStats, error) {
	raw, err := c.client.Get(ctx, statsKey(userID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read referral stats for %s: %w", userID, err)
	}

	var stats models.ReferralStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached referral stats: %w", err)
	}
	return &stats, nil
}

// Set stores stats for the configured TTL
func (c *StatsCache) Set(ctx context.Context, stats *models.ReferralStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode referral stats: %w", err)
	}
	if err := c.client.Set(ctx, statsKey(stats.UserID), data, c.ttl); err != nil {
		return fmt.Errorf("failed to write referral stats for %s: %w", stats.UserID, err)
	}
	return nil
}

// Invalidate drops cached stats for a user
func (c *StatsCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Delete(ctx, statsKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate referral stats for %s: %w", userID, err)
	}
	return nil
}
