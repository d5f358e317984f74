package retry

import (
	"context"
	"time"
)

// Action is an operation that may be attempted more than once.
type Action func() error

type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier applying strategies to every action. Without
// strategies an action is retried until it succeeds.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{
		strategies: strategies,
	}
}

func (r *retrier) Retry(action Action) (uint, error) {
	return Retry(action, r.strategies...)
}

// Retry runs action until it succeeds or a strategy declines another
// attempt. It returns the number of attempts made and the last error. The
// delays requested by the strategies add up.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	return run(context.Background(), action, strategies)
}

// RetryWithContext is Retry bounded by ctx. Waiting between attempts ends
// early when ctx is done, and no further attempt is made.
func RetryWithContext(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	return run(ctx, action, append([]Strategy{Context(ctx)}, strategies...))
}

func run(ctx context.Context, action Action, strategies []Strategy) (uint, error) {
	for attempts := uint(1); ; attempts++ {
		err := action()
		if err == nil {
			return attempts, nil
		}

		var delay time.Duration
		for _, s := range strategies {
			retry, d := s(attempts, err)
			if !retry {
				return attempts, err
			}
			delay += d
		}

		if delay > 0 && !sleeperImpl.Sleep(ctx, delay) {
			return attempts, err
		}
	}
}

type sleeper interface {
	// Sleep waits for d, returning false if ctx ended the wait early.
	Sleep(ctx context.Context, d time.Duration) bool
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var sleeperImpl sleeper = timerSleeper{}
