package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/citeverify/internal/model"
)

// ErrLimitExhausted is returned when a source's budget will not free up
// within the limiter's maximum wait
var ErrLimitExhausted = errors.New("rate limit exhausted")

// Limiter implements per-source rate limiting
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	maxWait      time.Duration
}

// NewLimiter creates a limiter allowing requestsPerMinute per source.
// Acquire never waits longer than maxWait.
func NewLimiter(requestsPerMinute int, maxWait time.Duration) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  perMinute(requestsPerMinute),
		defaultBurst: burstFor(requestsPerMinute),
		maxWait:      maxWait,
	}
}

// NewLimiterFromConfig creates a limiter with per-source overrides
func NewLimiterFromConfig(cfg model.RateLimitConfig) *Limiter {
	l := NewLimiter(cfg.DefaultRPM, cfg.MaxWait)
	for source, rpm := range cfg.SourceRPM {
		l.SetSourceRate(source, rpm)
	}
	return l
}

func perMinute(rpm int) rate.Limit {
	return rate.Limit(float64(rpm) / 60.0)
}

// burstFor allows short bursts of about a tenth of the per-minute budget
func burstFor(rpm int) int {
	return max(1, min(rpm/10, 5))
}

// Allow reports whether a request to source may proceed now, consuming a token if so
func (l *Limiter) Allow(source string) bool {
	return l.getLimiter(source).Allow()
}

// Acquire takes a token for source, sleeping at most maxWait. If the next
// token is further away than that, no token is consumed and
// ErrLimitExhausted is returned so the caller can skip the source.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	r := l.getLimiter(source).Reserve()
	if !r.OK() {
		return ErrLimitExhausted
	}

	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > l.maxWait {
		r.Cancel()
		return ErrLimitExhausted
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// getLimiter returns the rate limiter for a source
func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[source]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[source] = limiter
	return limiter
}

// SetSourceRate sets a custom per-minute budget for a source
func (l *Limiter) SetSourceRate(source string, requestsPerMinute int) {
	if requestsPerMinute <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[source] = rate.NewLimiter(perMinute(requestsPerMinute), burstFor(requestsPerMinute))
}
