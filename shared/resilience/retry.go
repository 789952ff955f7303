package resilience

import (
	"math/rand/v2"
	"time"
)

// RetryConfig bounds how collaborator calls are retried. Calls are
// expected to suspend for non-trivial latency, so the budget stays small
// and the caller falls back rather than blocking a session indefinitely.
type RetryConfig struct {
	MaxAttempts        uint
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	BackoffMultiplier  float64
	UseProviderBackoff bool
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:        3,
		InitialDelay:       500 * time.Millisecond,
		MaxDelay:           5 * time.Second,
		BackoffMultiplier:  2,
		UseProviderBackoff: true,
	}
}

// Backoff computes the delay before the given 1-based attempt,
// exponential with ±10% jitter, capped at MaxDelay.
func (c *RetryConfig) Backoff(attempt uint) time.Duration {
	delay := float64(c.InitialDelay)
	for i := uint(1); i < attempt; i++ {
		delay *= c.BackoffMultiplier
	}

	jitter := (rand.Float64() - 0.5) * 0.2 * delay
	final := time.Duration(delay + jitter)

	if final > c.MaxDelay {
		final = c.MaxDelay
	}
	return final
}
