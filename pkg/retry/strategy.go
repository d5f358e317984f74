package retry

import (
	"context"
	"errors"
	"time"

	"github.com/code-payments/square-program/pkg/retry/backoff"
)

// Strategy decides whether a failed attempt is tried again, and how long to
// wait before doing so. attempts counts the attempts made so far.
type Strategy func(attempts uint, err error) (retry bool, delay time.Duration)

// Limit stops once maxAttempts attempts have been made.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) (bool, time.Duration) {
		return attempts < maxAttempts, 0
	}
}

// RetriableErrors only retries errors matching one of retriableErrors.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ uint, err error) (bool, time.Duration) {
		for _, target := range retriableErrors {
			if errors.Is(err, target) {
				return true, 0
			}
		}
		return false, 0
	}
}

// NonRetriableErrors retries everything but errors matching one of
// nonRetriableErrors.
func NonRetriableErrors(nonRetriableErrors ...error) Strategy {
	return func(_ uint, err error) (bool, time.Duration) {
		for _, target := range nonRetriableErrors {
			if errors.Is(err, target) {
				return false, 0
			}
		}
		return true, 0
	}
}

// Backoff delays the next attempt by strategy, capped at maxBackoff.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)
	return func(attempts uint, _ error) (bool, time.Duration) {
		return true, capped(attempts)
	}
}

// BackoffWithJitter is Backoff with the capped delay spread by +/- jitter.
// A capped delay of 100ms with a jitter of 0.1 waits 90ms to 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	jittered := backoff.WithJitter(backoff.Capped(strategy, maxBackoff), jitter)
	return func(attempts uint, _ error) (bool, time.Duration) {
		return true, jittered(attempts)
	}
}

// Context stops once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(uint, error) (bool, time.Duration) {
		return ctx.Err() == nil, 0
	}
}
