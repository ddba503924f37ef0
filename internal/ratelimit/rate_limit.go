/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Result describes the outcome of a single admission check.
type Result struct {
	// Allowed reports whether the request fits into the quota.
	Allowed bool

	// Remaining is the number of requests the key may still spend within the current window.
	Remaining int

	// RetryAfter is an advisory interval after which the next attempt may be admitted.
	// Zero when the request is allowed.
	RetryAfter time.Duration

	// ResetAt is the moment when the oldest counted request leaves the window.
	ResetAt time.Time
}

// Limiter decides whether a request identified by key may proceed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// ConfigError is returned when a limiter is constructed with invalid parameters.
// It signals a misconfiguration, callers are expected to fail startup on it, not to handle it.
type ConfigError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("rate limit config: %s %s", e.Param, e.Reason)
}

func validateRate(maxRate Rate) error {
	if maxRate.Count < 1 {
		return &ConfigError{Param: "count", Reason: "must be >= 1"}
	}
	if maxRate.Duration < time.Second {
		return &ConfigError{Param: "duration", Reason: "must be >= 1s"}
	}
	return nil
}
