package resilience

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds the attempt loop and shapes the backoff between
// attempts. The delay before attempt n+1 is BaseDelay * Multiplier^(n-1),
// capped at MaxDelay, with up to Jitter fraction of random spread added.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultRetryPolicy mirrors the configured defaults: three attempts, one
// second base delay, doubling per attempt, 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay returns the backoff to wait after the given failed attempt
// (1-based). The result is at least BaseDelay and never exceeds MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the exponent so the float math cannot overflow.
	if attempt > 30 {
		attempt = 30
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
	}

	max := float64(p.MaxDelay)
	if max > 0 && delay > max {
		delay = max
	}

	jitter := p.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		amount := delay * jitter * rand.Float64()
		if max > 0 && delay+amount > max {
			delay = max
		} else {
			delay += amount
		}
	}

	return time.Duration(delay)
}
