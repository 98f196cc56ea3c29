// Package backoff provides the bounded exponential retry policy used for
// network operations against the upstream source and the remote store.
package backoff

import (
	"context"
	"time"
)

// Policy configures bounded exponential backoff.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelayMs is the delay before the second attempt.
	InitialDelayMs int64

	// MaxDelayMs caps the delay between attempts.
	MaxDelayMs int64

	// Multiplier scales the delay after each attempt.
	Multiplier float64
}

// DefaultPolicy returns the policy used for per-item fetch retries.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelayMs: 500,
		MaxDelayMs:     10000,
		Multiplier:     2.0,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelayMs <= 0 {
		p.InitialDelayMs = 500
	}
	if p.MaxDelayMs <= 0 {
		p.MaxDelayMs = 10000
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	return p
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. It stops
// early when fn succeeds, when retryable returns false for the error, or when
// the context is done. The last error is returned.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	p = p.normalize()

	delay := time.Duration(p.InitialDelayMs) * time.Millisecond
	maxDelay := time.Duration(p.MaxDelayMs) * time.Millisecond

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
