package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines the backoff configuration applied between failed
// initializer attempts.
type RetryPolicy struct {
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
	BackoffFactor  float64       `json:"backoff_factor"`
	EnableJitter   bool          `json:"enable_jitter"`
	JitterFactor   float64       `json:"jitter_factor"` // Percentage of jitter (0.0 to 1.0)
}

// NewDefaultRetryPolicy creates a retry policy with sensible defaults.
// Jitter is off by default so that delays are monotonically non-decreasing
// across attempts.
func NewDefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		EnableJitter:   false,
		JitterFactor:   0.3,
	}
}

// NewCustomRetryPolicy creates a retry policy with custom settings.
func NewCustomRetryPolicy(initialBackoff, maxBackoff time.Duration, backoffFactor float64) *RetryPolicy {
	return &RetryPolicy{
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		BackoffFactor:  backoffFactor,
	}
}

// BackoffDuration calculates the delay before the given retry attempt.
// Attempt numbers start at 1 for the first retry.
func (p *RetryPolicy) BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// Exponential backoff: initialBackoff * (factor ^ (attempt-1))
	backoff := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt-1)))

	// Cap at maximum backoff
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}

	if p.EnableJitter {
		jitter := rand.Float64() * p.JitterFactor
		backoff = time.Duration(float64(backoff) * (1 + jitter))
	}

	return backoff
}

// sleepCtx waits for the given duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
