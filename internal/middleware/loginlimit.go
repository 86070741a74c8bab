package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/balancepro/studio-server/internal/audit"
	"github.com/balancepro/studio-server/internal/config"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
)

const loginCleanupPeriod = 5 * time.Minute

// LoginLimiter decides whether another login attempt from clientIP is
// allowed. service.RateLimiter implements it on Redis.
type LoginLimiter interface {
	CheckLoginLimit(ctx context.Context, clientIP string) (allowed bool, resetAt time.Time)
}

type loginAttempt struct {
	count       int
	windowStart time.Time
}

// MemoryLoginLimiter is a fixed window limiter for single instance
// deployments without Redis.
type MemoryLoginLimiter struct {
	mu          sync.Mutex
	attempts    map[string]*loginAttempt
	lastCleanup time.Time
	now         func() time.Time
}

func NewMemoryLoginLimiter() *MemoryLoginLimiter {
	return &MemoryLoginLimiter{
		attempts:    make(map[string]*loginAttempt),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (l *MemoryLoginLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < loginCleanupPeriod {
		return
	}
	l.lastCleanup = now

	for ip, attempt := range l.attempts {
		if now.Sub(attempt.windowStart) > config.LoginWindow {
			delete(l.attempts, ip)
		}
	}
}

func (l *MemoryLoginLimiter) CheckLoginLimit(ctx context.Context, clientIP string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	attempt, exists := l.attempts[clientIP]
	if !exists || now.Sub(attempt.windowStart) > config.LoginWindow {
		l.attempts[clientIP] = &loginAttempt{count: 1, windowStart: now}
		return true, now.Add(config.LoginWindow)
	}

	resetAt := attempt.windowStart.Add(config.LoginWindow)
	if attempt.count >= config.LoginMaxAttempts {
		return false, resetAt
	}

	attempt.count++
	return true, resetAt
}

type LoginRateLimitMiddleware struct {
	limiter LoginLimiter
}

func NewLoginRateLimitMiddleware(limiter LoginLimiter) *LoginRateLimitMiddleware {
	return &LoginRateLimitMiddleware{limiter: limiter}
}

func (m *LoginRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)

		allowed, resetAt := m.limiter.CheckLoginLimit(r.Context(), ip)
		if !allowed {
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secondsLeft))
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
