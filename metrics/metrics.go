package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	UsersRegistered    *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	BalanceSyncs       *prometheus.CounterVec
	ReferralsQualified prometheus.Counter
	CountersReconciled prometheus.Counter

	// Outbox metrics
	OutboxDeliveries *prometheus.CounterVec
	OutboxPending    prometheus.Gauge

	// Pool metrics
	DBConnections prometheus.Gauge
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		UsersRegistered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_registered_total",
				Help: "Total number of users registered",
			},
			[]string{"referred"}, // true, false
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		BalanceSyncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "balance_syncs_total",
				Help: "Total number of balance writes",
			},
			[]string{"kind"}, // merge, set
		),
		ReferralsQualified: factory.NewCounter(prometheus.CounterOpts{
			Name: "referrals_qualified_total",
			Help: "Referral ledger entries moved to COMPLETED",
		}),
		CountersReconciled: factory.NewCounter(prometheus.CounterOpts{
			Name: "referral_counters_reconciled_total",
			Help: "Users whose referral counters were repaired from the ledger",
		}),

		OutboxDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_deliveries_total",
				Help: "Outbox event delivery attempts",
			},
			[]string{"event_type", "result"}, // published, failed
		),
		OutboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Outbox events waiting for delivery",
		}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of acquired database connections",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final
				c.Error(err)
			}

			// Route pattern, not the raw path
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}

// RecordUserRegistered increments users registered counter
func (m *Metrics) RecordUserRegistered(referred bool) {
	m.UsersRegistered.WithLabelValues(strconv.FormatBool(referred)).Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordBalanceWrite counts a balance merge or set
func (m *Metrics) RecordBalanceWrite(kind string) {
	m.BalanceSyncs.WithLabelValues(kind).Inc()
}

// RecordReferralsQualified adds newly completed ledger entries
func (m *Metrics) RecordReferralsQualified(n int64) {
	m.ReferralsQualified.Add(float64(n))
}

// RecordReconciled adds repaired user counters
func (m *Metrics) RecordReconciled(n int64) {
	m.CountersReconciled.Add(float64(n))
}

// RecordOutboxDelivery counts one delivery attempt
func (m *Metrics) RecordOutboxDelivery(eventType string, ok bool) {
	result := "failed"
	if ok {
		result = "published"
	}
	m.OutboxDeliveries.WithLabelValues(eventType, result).Inc()
}

// SetOutboxPending updates the pending outbox gauge
func (m *Metrics) SetOutboxPending(n int64) {
	m.OutboxPending.Set(float64(n))
}

// UpdateDBConnections updates active database connections gauge
func (m *Metrics) UpdateDBConnections(count int32) {
	m.DBConnections.Set(float64(count))
}
