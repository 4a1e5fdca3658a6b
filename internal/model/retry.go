package model

import "time"

// RetryPolicy defines retry behavior for source fetch attempts.
// It is a plain value consumed by the dispatcher, decoupled from the
// fetch logic itself.
type RetryPolicy struct {
	MaxAttempts       int           `json:"max_attempts"`
	BaseDelay         time.Duration `json:"base_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryPolicy is applied when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:       3,
	BaseDelay:         500 * time.Millisecond,
	BackoffMultiplier: 2.0,
}

// Normalized returns the policy with zero values replaced by defaults.
func (p RetryPolicy) Normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.BackoffMultiplier <= 1 {
		p.BackoffMultiplier = DefaultRetryPolicy.BackoffMultiplier
	}
	return p
}
