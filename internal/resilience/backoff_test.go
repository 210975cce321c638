package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayGrowsWithoutJitter(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0,
	}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
}

func TestDelayNeverBelowBaseAndNonDecreasing(t *testing.T) {
	p := DefaultRetryPolicy()

	var prevMin time.Duration
	for attempt := 1; attempt <= 10; attempt++ {
		// Jitter is random; sample to bound the range.
		min := p.MaxDelay
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, p.BaseDelay)
			assert.LessOrEqual(t, d, p.MaxDelay)
			if d < min {
				min = d
			}
		}
		assert.GreaterOrEqual(t, min, prevMin, "attempt %d floor regressed", attempt)
		prevMin = min
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}

	for i := 0; i < 50; i++ {
		assert.LessOrEqual(t, p.Delay(10), 5*time.Second)
	}
}

func TestDelayHandlesDegenerateInput(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Jitter = 0

	assert.Equal(t, p.Delay(1), p.Delay(0), "attempts below one are clamped")
	assert.LessOrEqual(t, p.Delay(1000), p.MaxDelay, "huge attempt counts stay capped")
}
