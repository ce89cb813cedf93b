package utils

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CalculateExponentialBackoffWithJitter computes a jittered exponential backoff delay.
// - count: Retry attempt number (1-based, e.g., 1 for first retry)
// - base: Base delay (e.g., 200 * time.Millisecond)
// - max: Maximum allowable delay (e.g., 5 * time.Second)
// Returns the calculated duration with jitter.
func CalculateExponentialBackoffWithJitter(count int, base time.Duration, max time.Duration) time.Duration {
	if count <= 0 || base <= 0 {
		return 0
	}
	if max < base {
		return max
	}

	// Exponential backoff: base * 2^(count-1), guarded against overflow for long outages
	exp := math.Pow(2, float64(count-1))
	if exp > float64(max/base) {
		exp = float64(max / base)
	}
	baseDelay := base * time.Duration(exp)

	// Add jitter: -12.5% to +12.5% of baseDelay to avoid synchronization
	delay := baseDelay
	if quarter := int64(baseDelay / 4); quarter > 0 {
		delay += time.Duration(rand.Int63n(quarter)) - (baseDelay / 8)
	}

	if delay > max {
		delay = max
	}
	return delay
}

// NewExponentialBackOff returns a backoff.ExponentialBackOff bounded by base/max intervals.
// maxElapsed of 0 means retry until the policy is stopped by other means (context, max retries).
func NewExponentialBackOff(base, max, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}
