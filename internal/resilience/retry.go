// Package resilience wraps calls to the external services the pipelines
// depend on (imagery classifier, Overpass, AI verifier) with retry and
// transient-error classification. A failed call after retries degrades the
// affected pipeline to its synthetic fallback, it never crashes a run.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first. 1 disables
	// retrying.
	Attempts int
	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the grown backoff.
	MaxDelay time.Duration
	// Jitter perturbs each delay by up to ±Jitter as a fraction of it.
	Jitter float64
	// Retryable overrides the transient check when non-nil.
	Retryable func(error) bool
}

// DefaultPolicy suits slow external APIs: 3 attempts, 500ms base backoff
// doubling to at most 30s, with 25% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		Jitter:    0.25,
	}
}

// WithAttempts returns a copy of the policy with the attempt count replaced.
func (p Policy) WithAttempts(n int) Policy {
	p.Attempts = n
	return p
}

// Retry runs fn under the policy, retrying transient failures. Context
// cancellation stops immediately with the last error.
func Retry[T any](ctx context.Context, service string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalize()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == p.Attempts-1 {
			break
		}

		zap.L().Warn("resilience: retrying after transient failure",
			zap.String("service", service),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
