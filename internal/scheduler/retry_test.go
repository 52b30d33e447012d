package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDuration_Monotonic(t *testing.T) {
	p := NewDefaultRetryPolicy()

	var prev time.Duration
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.BackoffDuration(attempt)
		assert.GreaterOrEqual(t, d, prev, "backoff must be non-decreasing at attempt %d", attempt)
		prev = d
	}
}

func TestBackoffDuration_Exponential(t *testing.T) {
	p := NewCustomRetryPolicy(time.Second, time.Hour, 2.0)

	assert.Equal(t, time.Second, p.BackoffDuration(1))
	assert.Equal(t, 2*time.Second, p.BackoffDuration(2))
	assert.Equal(t, 4*time.Second, p.BackoffDuration(3))
}

func TestBackoffDuration_CappedAtMax(t *testing.T) {
	p := NewCustomRetryPolicy(time.Second, 3*time.Second, 2.0)

	assert.Equal(t, 3*time.Second, p.BackoffDuration(5))
}

func TestBackoffDuration_ZeroForNonPositiveAttempt(t *testing.T) {
	p := NewDefaultRetryPolicy()

	assert.Equal(t, time.Duration(0), p.BackoffDuration(0))
	assert.Equal(t, time.Duration(0), p.BackoffDuration(-1))
}

func TestBackoffDuration_JitterStaysBounded(t *testing.T) {
	p := NewCustomRetryPolicy(time.Second, time.Hour, 2.0)
	p.EnableJitter = true
	p.JitterFactor = 0.3

	for i := 0; i < 100; i++ {
		d := p.BackoffDuration(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 1300*time.Millisecond)
	}
}
