package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"earnhub/auth"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const sessionUserKey = "session_user_id"

// RateLimiter holds one token bucket per client IP
type RateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	b        int
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a per-IP limiter allowing requestsPerMinute with the given burst
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		r:        rate.Limit(float64(requestsPerMinute) / 60.0),
		b:        burst,
		done:     make(chan struct{}),
	}

	go rl.cleanupVisitors(3 * time.Minute)

	return rl
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.r, rl.b)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// cleanupVisitors forgets IPs whose bucket has refilled
func (rl *RateLimiter) cleanupVisitors(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, limiter := range rl.visitors {
				if limiter.Tokens() >= float64(rl.b) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			if !rl.limiter(ip).Allow() {
				return fail(c, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			}
			return next(c)
		}
	}
}

// requestLogger logs one logrus line per request
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURIPath:  true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(log.Fields{
				"method":    v.Method,
				"path":      v.URIPath,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
				"remoteIp":  v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("Request completed with error")
				return nil
			}
			entry.Debug("Request completed")
			return nil
		},
	})
}

// requireSession validates the bearer token and stores its user id on the context
func requireSession(sessions *auth.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				return fail(c, http.StatusUnauthorized, "missing session token")
			}

			userID, err := sessions.Validate(strings.TrimSpace(token))
			if err != nil {
				log.WithError(err).Debug("Rejected session token")
				return fail(c, http.StatusUnauthorized, "invalid session token")
			}

			c.Set(sessionUserKey, userID)
			return next(c)
		}
	}
}

// authorizedFor reports whether the caller may act on userID. Without a
// session on the context (sessions not enforced) every caller may.
func authorizedFor(c echo.Context, userID uuid.UUID) bool {
	sessionUser, ok := c.Get(sessionUserKey).(uuid.UUID)
	if !ok {
		return true
	}
	return sessionUser == userID
}
