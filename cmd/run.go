package cmd

import (
	"context"
	"fmt"
	"time"

	"earnhub/auth"
	"earnhub/cache"
	"earnhub/config"
	"earnhub/database"
	"earnhub/events"
	"earnhub/infrastructure"
	"earnhub/logging"
	"earnhub/metrics"
	"earnhub/repository"
	"earnhub/server"
	"earnhub/service"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if err := logging.Setup(cfg.LogLevel, cfg.IsProduction()); err != nil {
		return err
	}
	log.WithField("environment", cfg.Environment).Info("Starting earnhub...")

	// Initialize database connection
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(),
		database.WithMaxConns(int32(cfg.DatabaseMaxConns)),
		database.WithHealthCheckPeriod(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	m := metrics.New()

	// Optional stats cache
	var statsCache service.StatsCache
	healthChecks := []server.HealthCheck{{Name: "database", Check: db.Ping}}
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		statsCache = cache.NewStatsCache(redisClient, cfg.StatsCacheTTL)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "cache", Check: redisClient.Ping})
	} else {
		log.Info("REDIS_URL not set, referral stats cache disabled")
	}

	// Events are written to the outbox inside each unit of work and the
	// relay delivers them to the bus after commit
	eventBus := events.NewBus()
	relay := infrastructure.NewOutboxRelay(db, eventBus, m)
	uowFactory := repository.NewUnitOfWorkFactory(db, relay)

	// Initialize services
	signupService := service.NewSignupService(uowFactory)
	balanceService := service.NewBalanceService(uowFactory)
	qualificationService := service.NewQualificationService(uowFactory)
	statsService := service.NewReferralStatsService(uowFactory, statsCache)
	userService := service.NewUserService(uowFactory)
	log.Info("Services initialized successfully")

	// Event consumers
	eventBus.Subscribe(events.EventTypeBalanceChange, service.NewQualificationHandler(qualificationService))
	eventBus.Subscribe(events.EventTypeReferralQualified, func(ctx context.Context, event events.Event) error {
		m.RecordReferralsQualified(1)
		return nil
	})
	if statsCache != nil {
		invalidate := service.NewStatsInvalidationHandler(statsCache)
		eventBus.Subscribe(events.EventTypeReferralCreated, invalidate)
		eventBus.Subscribe(events.EventTypeReferralQualified, invalidate)
	}

	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return err
		}
		defer natsClient.Close()

		mapper := infrastructure.NewEventSubjectMapper()
		if err := natsClient.EnsureStream(mapper.GetAllSubjects()); err != nil {
			return err
		}
		eventBus.SubscribeAll(infrastructure.NewNATSEventForwarder(natsClient, mapper).Handle)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !natsClient.IsConnected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}})
	} else {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
	}

	go relay.Run(ctx)

	scheduler, err := infrastructure.NewScheduler(ctx, userService, relay, m, cfg.ReconcileInterval, cfg.OutboxSweepInterval)
	if err != nil {
		return err
	}
	scheduler.Start()

	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		log.Warn("SESSION_SECRET not set, balance writes are not authenticated")
	}

	httpServer, err := server.New(server.Services{
		Signup:        signupService,
		Balance:       balanceService,
		Qualification: qualificationService,
		ReferralStats: statsService,
		Users:         userService,
	}, server.Options{
		Sessions:     sessions,
		Metrics:      m,
		HealthChecks: healthChecks,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	// Wait for cancellation or a listener failure
	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.WithError(shutdownErr).Error("HTTP server shutdown failed")
	}
	if shutdownErr := scheduler.Shutdown(); shutdownErr != nil {
		log.WithError(shutdownErr).Error("Scheduler shutdown failed")
	}

	log.Info("Shutdown complete")
	return err
}
