// Package rate throttles operations per key.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked keys past which idle keys are
// forgotten.
const pruneThreshold = 1024

// Limiter throttles operations per key, for example per airdrop recipient.
type Limiter interface {
	Allow(key string) bool
}

type keyedLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter returns an in memory limiter allowing perSecond operations
// per second for each key, in bursts of up to perSecond. A rate of zero
// disables limiting.
func NewLocalLimiter(perSecond uint64) Limiter {
	if perSecond == 0 {
		return unlimited{}
	}
	return newKeyedLimiter(rate.Limit(perSecond), int(perSecond), time.Now)
}

func newKeyedLimiter(limit rate.Limit, burst int, now func() time.Time) *keyedLimiter {
	if burst < 1 {
		burst = 1
	}

	return &keyedLimiter{
		limit:    limit,
		burst:    burst,
		now:      now,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= pruneThreshold {
			l.prune(now)
		}

		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}

	return limiter.AllowN(now, 1)
}

// prune drops keys whose bucket has refilled, since a fresh limiter behaves
// identically.
func (l *keyedLimiter) prune(now time.Time) {
	for key, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}

func (l *keyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

type unlimited struct{}

func (unlimited) Allow(string) bool {
	return true
}
