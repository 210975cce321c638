package resilience

import (
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds token-bucket rate limiter configuration.
type RateLimiterConfig struct {
	RPS   float64
	Burst int
}

// DefaultRateLimiterConfig allows 100 requests per rolling minute.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RPS:   100.0 / 60.0,
		Burst: 100,
	}
}

// NewRateLimiter creates a limiter from the configuration.
func NewRateLimiter(cfg RateLimiterConfig) *rate.Limiter {
	if cfg.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RPS), burst)
}
