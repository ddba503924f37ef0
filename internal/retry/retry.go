/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides backoff policies and a helper for retrying failed operations,
// e.g. uploads of submission package objects.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy builds a backoff strategy for one retried operation.
// Implementations must return a fresh backoff.BackOff on every call,
// the instances are stateful and cannot be shared.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// PolicyFunc adapts an ordinary function to the Policy interface.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// IsRetryable reports whether an error is transient. A false result stops retrying immediately.
type IsRetryable func(error) bool

// RetryableFunc is an operation that may be executed multiple times.
type RetryableFunc func(ctx context.Context) error

// DoWithRetry executes fn, repeating it according to policy p until it succeeds,
// the policy gives up or ctx is done. A nil isRetryable treats every error as transient.
// notify, when not nil, is called before each repeated attempt with the error and the upcoming delay.
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify backoff.Notify, fn RetryableFunc) error {
	b := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(b.Context())
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(op, b, notify)
}

// ExponentialBackoffPolicy repeats up to maxAttempts times with exponentially growing delays.
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with the given initial
// delay and retry attempt limit. A non-positive limit keeps retrying until the context is done.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval: initialInterval, maxAttempts: maxAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	return capAttempts(eb, p.maxAttempts)
}

// ConstantBackoffPolicy repeats up to maxAttempts times with a fixed delay.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with the given delay
// and retry attempt limit. A non-positive limit keeps retrying until the context is done.
func NewConstantBackoffPolicy(interval time.Duration, maxAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval: interval, maxAttempts: maxAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	return capAttempts(backoff.NewConstantBackOff(p.interval), p.maxAttempts)
}

func capAttempts(b backoff.BackOff, maxAttempts int) backoff.BackOff {
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxAttempts))
	}
	b.Reset()
	return b
}
