package infrastructure

import (
	"context"
	"fmt"
	"time"

	"earnhub/metrics"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// CounterReconciler repairs materialized referral counters
type CounterReconciler interface {
	ReconcileReferralCounters(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic background jobs
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler registers the reconciliation and outbox sweep jobs.
// The jobs run once Start is called. m may be nil.
func NewScheduler(ctx context.Context, reconciler CounterReconciler, relay *OutboxRelay, m *metrics.Metrics, reconcileEvery, sweepEvery time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(reconcileEvery),
		gocron.NewTask(func() {
			corrected, err := reconciler.ReconcileReferralCounters(ctx)
			if err != nil {
				log.WithError(err).Error("Referral counter reconciliation failed")
				return
			}
			if m != nil {
				m.RecordReconciled(corrected)
			}
		}),
		gocron.WithName("reconcile-referral-counters"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(relay.Notify),
		gocron.WithName("outbox-sweep"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule outbox sweep: %w", err)
	}

	return &Scheduler{sched: sched}, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.sched.Start()
	log.WithField("jobs", len(s.sched.Jobs())).Info("Scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
