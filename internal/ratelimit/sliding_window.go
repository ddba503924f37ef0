/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultSlidingWindowSweepEvery is the default denominator of the probability with which
// a single Allow call scans the whole store and evicts entries with fully elapsed windows.
const DefaultSlidingWindowSweepEvery = 10

// SlidingWindowLimiter implements rate limiting based on a per-key log of admitted request times.
// The window slides continuously: an admitted request is counted against the quota
// for exactly maxRate.Duration after its admission, so a caller sending maxRate.Count
// evenly spaced requests is never rejected, unlike with fixed buckets that reset at interval edges.
// Rejected requests are not recorded and never extend the window.
//
// Every limiter owns an isolated store, limiters never share state even when
// they are built from identical parameters. All methods are safe for concurrent use.
type SlidingWindowLimiter struct {
	maxRate Rate

	mu      sync.Mutex
	entries map[string][]time.Time
	rnd     *rand.Rand

	sweepEvery int
	now        func() time.Time
}

// SlidingWindowOpts tunes housekeeping of a SlidingWindowLimiter.
type SlidingWindowOpts struct {
	// SweepEvery is the average number of Allow calls between full store sweeps.
	// 1 sweeps on every call, 0 means DefaultSlidingWindowSweepEvery.
	SweepEvery int
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate) (*SlidingWindowLimiter, error) {
	return NewSlidingWindowLimiterWithOpts(maxRate, SlidingWindowOpts{})
}

// NewSlidingWindowLimiterWithOpts is a more configurable version of NewSlidingWindowLimiter.
func NewSlidingWindowLimiterWithOpts(maxRate Rate, opts SlidingWindowOpts) (*SlidingWindowLimiter, error) {
	if err := validateRate(maxRate); err != nil {
		return nil, err
	}
	sweepEvery := opts.SweepEvery
	if sweepEvery == 0 {
		sweepEvery = DefaultSlidingWindowSweepEvery
	}
	if sweepEvery < 1 {
		return nil, &ConfigError{Param: "sweepEvery", Reason: "must be >= 1"}
	}
	return &SlidingWindowLimiter{
		maxRate:    maxRate,
		entries:    make(map[string][]time.Time),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sweepEvery: sweepEvery,
		now:        time.Now,
	}, nil
}

// Allow checks if the request should be allowed based on the rate limit.
// Equal keys share a quota, distinct keys are fully isolated.
func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.rnd.Intn(l.sweepEvery) == 0 {
		l.sweepLocked(now)
	}

	stamps := pruneStamps(l.entries[key], now.Add(-l.maxRate.Duration))

	if len(stamps) >= l.maxRate.Count {
		l.entries[key] = stamps
		resetAt := stamps[0].Add(l.maxRate.Duration)
		return Result{RetryAfter: resetAt.Sub(now), ResetAt: resetAt}, nil
	}

	stamps = append(stamps, now)
	l.entries[key] = stamps
	return Result{
		Allowed:   true,
		Remaining: l.maxRate.Count - len(stamps),
		ResetAt:   stamps[0].Add(l.maxRate.Duration),
	}, nil
}

// Len returns the number of keys currently tracked by the store.
func (l *SlidingWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweepLocked evicts every entry whose window has fully elapsed,
// i.e. even the newest admitted request has already left the window.
// This bounds memory growth from one-off callers, the quota math never depends on it.
func (l *SlidingWindowLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.maxRate.Duration)
	for key, stamps := range l.entries {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}

// reset drops all tracked keys. Test isolation helper, must stay off production paths.
func (l *SlidingWindowLimiter) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string][]time.Time)
}

// pruneStamps drops the leading timestamps that have left the window ending at cutoff+window.
// Stamps are chronological, so the survivors are always a suffix.
// A stamp lying exactly on the boundary is expired, the tie favors the caller.
func pruneStamps(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return stamps[i:]
}
