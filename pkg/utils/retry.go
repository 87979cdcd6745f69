package utils

import (
	"context"
	"fmt"
	"time"
)

// Backoff bounds a Retry loop. The wait starts at Delay and grows by Factor
// after every failure, capped at MaxDelay when that is set.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Factor   float64

	// Notify, when set, is called before each wait
	Notify func(attempt int, err error, wait time.Duration)
}

func (b Backoff) grow(wait time.Duration) time.Duration {
	if b.Factor > 1 {
		wait = time.Duration(float64(wait) * b.Factor)
	}
	if b.MaxDelay > 0 && wait > b.MaxDelay {
		wait = b.MaxDelay
	}
	return wait
}

// Retry runs fn until it succeeds, b.Attempts runs out or ctx is done.
// At least one attempt is made. The last error is wrapped on exhaustion.
func Retry[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	wait := b.Delay

	for attempt := 1; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= b.Attempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		if b.Notify != nil {
			b.Notify(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		wait = b.grow(wait)
	}
}
