package model

import (
	"math"
	"time"
)

// RetryConfig defines retry behavior for failed catalog lookups
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"` // total attempts including the first
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig is used when nothing else is configured
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      200 * time.Millisecond,
	MaxDelay:          5 * time.Second,
	BackoffMultiplier: 2.0,
}

// Delay returns the wait before attempt+1, given that attempt (1-based) just failed
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(c.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}
