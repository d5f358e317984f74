// Package backoff provides delay schedules for retry.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy returns how long to wait before the next attempt. attempts
// starts at 1.
type Strategy func(attempts uint) time.Duration

// Constant waits interval between every attempt.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Exponential waits baseDelay * base^(attempts-1), saturating at the largest
// representable duration.
//
// Ex. Exponential(2*time.Second, 3) = 2s, 6s, 18s, 54s, ...
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		delay := float64(baseDelay) * math.Pow(base, float64(attempts-1))
		if delay >= math.MaxInt64 || delay < 0 {
			return math.MaxInt64
		}
		return time.Duration(delay)
	}
}

// BinaryExponential is Exponential with a base of 2.
//
// Ex. BinaryExponential(2*time.Second) = 2s, 4s, 8s, 16s, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}

// Capped limits the delays of strategy to max.
func Capped(strategy Strategy, max time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if delay := strategy(attempts); delay < max {
			return delay
		}
		return max
	}
}

// WithJitter spreads the delays of strategy uniformly by +/- jitter, a
// fraction of each delay. A jitter of 0.1 turns 100ms into 90ms to 110ms.
func WithJitter(strategy Strategy, jitter float64) Strategy {
	return func(attempts uint) time.Duration {
		delay := float64(strategy(attempts))
		return time.Duration(delay * (1 + jitter*(2*rand.Float64()-1)))
	}
}
