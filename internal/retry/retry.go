// Package retry runs an operation a bounded number of times with exponential
// backoff and jitter between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config bounds a retry loop. Zero values fall back to small defaults.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before each wait with the 1-based attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ErrExhausted is wrapped into the error returned once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 100 * time.Millisecond
	}
	return c
}

// wait returns the pause after the given 1-based failed attempt, capped at MaxDelay.
func (c Config) wait(attempt int) time.Duration {
	d := c.BaseDelay << (attempt - 1)
	if d <= 0 || d > c.MaxDelay {
		d = c.MaxDelay
	}
	d += time.Duration(rand.Int63n(int64(c.Jitter)))
	return min(d, c.MaxDelay)
}

// Value calls fn until it succeeds, the attempts run out, the error is not
// retryable, or ctx is done, and returns fn's result.
func Value[T any](ctx context.Context, config Config, fn func(ctx context.Context) (T, error)) (T, error) {
	config = config.withDefaults()
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= config.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", lastErr, err)
			}
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}
		if attempt == config.Attempts {
			break
		}

		wait := config.wait(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %w", lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, config.Attempts, lastErr)
}
