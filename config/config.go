package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"earnhub/database"
)

// Config holds all application configuration
type Config struct {
	// HTTP configuration
	HTTPAddr string

	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int // 0 keeps the pgx default

	// Reward configuration. The qualification threshold is derived from these
	// so there is exactly one place the numbers live.
	StartingBalance       int64 // Balance seeded at signup
	ReferralBonus         int64 // Ledger amount per referral
	QualificationEarnings int64 // Earnings above the starting balance a referred user needs

	// Redis configuration (optional, stats cache disabled when empty)
	RedisURL      string
	StatsCacheTTL time.Duration

	// NATS configuration (optional, forwarding disabled when empty)
	NATSServers string

	// Session configuration (optional, balance mutations unauthenticated when empty)
	SessionSecret string
	SessionTTL    time.Duration

	// Rate limiting
	RateLimitPerMinute int
	RateLimitBurst     int

	// Background jobs
	ReconcileInterval   time.Duration
	OutboxSweepInterval time.Duration

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// QualificationThreshold is the balance at which a referred user's pending
// referrals complete.
func (c *Config) QualificationThreshold() int64 {
	return c.StartingBalance + c.QualificationEarnings
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),

		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Reward settings with defaults
		StartingBalance:       50000,
		ReferralBonus:         10000,
		QualificationEarnings: 10000,

		// Redis
		RedisURL:      os.Getenv("REDIS_URL"),
		StatsCacheTTL: 60 * time.Second,

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Sessions
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    720 * time.Hour,

		// Rate limiting
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,

		// Jobs
		ReconcileInterval:   10 * time.Minute,
		OutboxSweepInterval: 5 * time.Second,

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if err := parseInt64Env("STARTING_BALANCE", &config.StartingBalance); err != nil {
		return nil, err
	}
	if err := parseInt64Env("REFERRAL_BONUS", &config.ReferralBonus); err != nil {
		return nil, err
	}
	if err := parseInt64Env("QUALIFICATION_EARNINGS", &config.QualificationEarnings); err != nil {
		return nil, err
	}
	if err := parseIntEnv("DATABASE_MAX_CONNS", &config.DatabaseMaxConns); err != nil {
		return nil, err
	}
	if err := parseIntEnv("RATE_LIMIT_PER_MINUTE", &config.RateLimitPerMinute); err != nil {
		return nil, err
	}
	if err := parseIntEnv("RATE_LIMIT_BURST", &config.RateLimitBurst); err != nil {
		return nil, err
	}
	if err := parseDurationEnv("STATS_CACHE_TTL", &config.StatsCacheTTL); err != nil {
		return nil, err
	}
	if err := parseDurationEnv("SESSION_TTL", &config.SessionTTL); err != nil {
		return nil, err
	}
	if err := parseDurationEnv("RECONCILE_INTERVAL", &config.ReconcileInterval); err != nil {
		return nil, err
	}
	if err := parseDurationEnv("OUTBOX_SWEEP_INTERVAL", &config.OutboxSweepInterval); err != nil {
		return nil, err
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	if config.StartingBalance < 0 || config.ReferralBonus <= 0 || config.QualificationEarnings < 0 {
		return nil, fmt.Errorf("reward amounts must be non-negative and REFERRAL_BONUS positive")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64Env(key string, dst *int64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func parseIntEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

func parseDurationEnv(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:              ":0",
		Environment:           "test",
		StartingBalance:       50000,
		ReferralBonus:         10000,
		QualificationEarnings: 10000,
		StatsCacheTTL:         time.Minute,
		SessionTTL:            time.Hour,
		RateLimitPerMinute:    6000,
		RateLimitBurst:        1000,
		ReconcileInterval:     time.Minute,
		OutboxSweepInterval:   time.Second,
		LogLevel:              "debug",
	}
}
