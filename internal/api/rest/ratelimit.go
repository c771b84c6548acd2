package rest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterPruneSize = 1024
)

// OTPLimiter throttles OTP requests per credential so a user cannot flood the
// GST portal with passcodes.
type OTPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	perMin   int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewOTPLimiter(perMinute, burst int) *OTPLimiter {
	if perMinute <= 0 {
		perMinute = 3
	}
	if burst <= 0 {
		burst = 1
	}
	return &OTPLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		perMin:   perMinute,
		now:      time.Now,
	}
}

// Allow consumes a token for key and reports whether the call may proceed.
func (l *OTPLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= limiterPruneSize {
			l.prune(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (l *OTPLimiter) prune(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

func (l *OTPLimiter) rejection() error {
	err := errors.NewPolicyViolation("OTP_RATE_LIMITED",
		fmt.Sprintf("Too many OTP requests, at most %d per minute are allowed", l.perMin))
	err.StatusCode = http.StatusTooManyRequests
	err.Retryable = true
	return err
}
