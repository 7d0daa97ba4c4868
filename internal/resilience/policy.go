// Package resilience wraps calls to a flaky remote service with retry,
// circuit breaking, bulkheading and per-call deadlines.
package resilience

import (
	"time"

	"github.com/LavishGent/remoteguard/internal/config"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultMultiplier  = 2.0
)

// RetryPolicy describes how often an operation is attempted and how far apart.
type RetryPolicy struct {
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	MaxAttempts       int
	Jitter            bool
}

// DefaultRetryPolicy returns 3 attempts starting at 1s, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       defaultMaxAttempts,
		BaseDelay:         defaultBaseDelay,
		MaxDelay:          defaultMaxDelay,
		BackoffMultiplier: defaultMultiplier,
		Jitter:            true,
	}
}

// AggressiveRetryPolicy retries more often with shorter waits.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       5,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          15 * time.Second,
		BackoffMultiplier: defaultMultiplier,
		Jitter:            true,
	}
}

// ConservativeRetryPolicy retries once more after a long wait.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: defaultMultiplier,
		Jitter:            true,
	}
}

// RetryPolicyFromConfig builds a policy from the retry config section.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay,
		MaxDelay:          cfg.MaxDelay,
		BackoffMultiplier: cfg.BackoffMultiplier,
		Jitter:            cfg.Jitter,
	}.Normalize()
}

// Normalize returns a copy with every field inside its valid range.
// A zero multiplier or max delay takes the default.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	switch {
	case p.BackoffMultiplier == 0:
		p.BackoffMultiplier = defaultMultiplier
	case p.BackoffMultiplier < 1:
		p.BackoffMultiplier = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}
