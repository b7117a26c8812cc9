package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"earnhub/auth"
	"earnhub/config"
	"earnhub/metrics"
	"earnhub/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Services are the domain services behind the HTTP API
type Services struct {
	Signup        service.SignupService
	Balance       service.BalanceService
	Qualification service.QualificationService
	ReferralStats service.ReferralStatsService
	Users         service.UserService
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options carries the optional collaborators of the server
type Options struct {
	Sessions     *auth.SessionManager
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	HealthChecks []HealthCheck
}

// Server is the echo HTTP front of the service
type Server struct {
	echo        *echo.Echo
	config      *config.Config
	rateLimiter *RateLimiter
}

// New builds the echo app with middleware and routes
func New(services Services, opts Options) (*Server, error) {
	cfg := config.Get()

	if opts.Sessions == nil {
		sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		opts.Sessions = sessions
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = httpErrorHandler

	s := &Server{
		echo:        e,
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
	}

	e.GET("/health", healthHandler(opts.HealthChecks))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api", s.rateLimiter.Middleware())

	authHandler := NewAuthHandler(services.Signup, services.Users, opts.Sessions, opts.Metrics)
	api.POST("/signup", authHandler.Signup)
	api.POST("/login", authHandler.Login)

	// Balance writes require a matching session once a secret is configured
	var balanceWrite []echo.MiddlewareFunc
	if cfg.SessionSecret != "" {
		balanceWrite = append(balanceWrite, requireSession(opts.Sessions))
	}
	balanceHandler := NewBalanceHandler(services.Balance, opts.Metrics)
	api.GET("/user-balance", balanceHandler.Get)
	api.POST("/user-balance", balanceHandler.Sync, balanceWrite...)
	api.PUT("/user-balance", balanceHandler.Set, balanceWrite...)

	referralHandler := NewReferralHandler(services.ReferralStats, services.Qualification)
	api.GET("/referral-stats", referralHandler.Stats)
	api.POST("/referral-qualification-check", referralHandler.CheckQualification)
	api.GET("/referral-qualification-check", referralHandler.EvaluateQualification)

	userHandler := NewUserHandler(services.Users)
	api.GET("/user/:userId", userHandler.GetProfile)

	return s, nil
}

// ServeHTTP lets the server be used directly as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.config.HTTPAddr).Info("HTTP server listening")
	if err := s.echo.Start(s.config.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func healthHandler(checks []HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]string{"status": "ok"}
		status := http.StatusOK

		for _, check := range checks {
			if err := check.Check(c.Request().Context()); err != nil {
				log.WithFields(log.Fields{
					"dependency": check.Name,
					"error":      err,
				}).Warn("Health check failed")
				body[check.Name] = "down"
				body["status"] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			body[check.Name] = "up"
		}

		return c.JSON(status, body)
	}
}
