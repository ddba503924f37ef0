/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

// fakeClock is a manually advanced time source for deterministic window arithmetic.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// SlidingWindowLimiterTestSuite contains tests for SlidingWindowLimiter
type SlidingWindowLimiterTestSuite struct {
	suite.Suite
}

func TestSlidingWindowLimiter(t *testing.T) {
	suite.Run(t, new(SlidingWindowLimiterTestSuite))
}

// newLimiterOnClock builds a limiter on a fake clock with sweeping effectively disabled
// so that tests control eviction explicitly.
func (ts *SlidingWindowLimiterTestSuite) newLimiterOnClock(maxRate Rate, clk *fakeClock) *SlidingWindowLimiter {
	limiter, err := NewSlidingWindowLimiterWithOpts(maxRate, SlidingWindowOpts{SweepEvery: 1 << 30})
	ts.Require().NoError(err)
	limiter.now = clk.Now
	return limiter
}

func (ts *SlidingWindowLimiterTestSuite) TestConstructionValidation() {
	var cfgErr *ConfigError

	_, err := NewSlidingWindowLimiter(Rate{Count: 0, Duration: time.Minute})
	ts.Require().ErrorAs(err, &cfgErr)
	ts.Equal("count", cfgErr.Param)

	cfgErr = nil
	_, err = NewSlidingWindowLimiter(Rate{Count: 5, Duration: 500 * time.Millisecond})
	ts.Require().ErrorAs(err, &cfgErr)
	ts.Equal("duration", cfgErr.Param)

	_, err = NewSlidingWindowLimiterWithOpts(Rate{Count: 1, Duration: time.Second}, SlidingWindowOpts{SweepEvery: -1})
	ts.Require().Error(err)

	_, err = NewSlidingWindowLimiter(Rate{Count: 1, Duration: time.Second})
	ts.Require().NoError(err)
}

func (ts *SlidingWindowLimiterTestSuite) TestQuotaConcreteScenario() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 5, Duration: time.Minute}, clk)
	ctx := context.Background()

	// 5 requests at t=0..4ms are all admitted.
	for i := 0; i < 5; i++ {
		res, err := limiter.Allow(ctx, "1.2.3.4")
		ts.Require().NoError(err)
		ts.Require().True(res.Allowed)
		ts.Equal(4-i, res.Remaining)
		clk.Advance(time.Millisecond)
	}

	// The 6th at t=5ms is rejected and the advertised wait rounds up to the full minute.
	res, err := limiter.Allow(ctx, "1.2.3.4")
	ts.Require().NoError(err)
	ts.False(res.Allowed)
	ts.Equal(0, res.Remaining)
	ts.Equal(59995*time.Millisecond, res.RetryAfter)
	ts.Equal(60, int(math.Ceil(res.RetryAfter.Seconds())))

	// A different key is not affected.
	res, err = limiter.Allow(ctx, "5.6.7.8")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestKeysAreIsolated() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "tenant-a")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)

	res, err = limiter.Allow(ctx, "tenant-a")
	ts.Require().NoError(err)
	ts.Require().False(res.Allowed)

	// Exhausting tenant-a leaves tenant-b's quota untouched.
	res, err = limiter.Allow(ctx, "tenant-b")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestInstancesOwnIsolatedStores() {
	clk := newFakeClock()
	first := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	second := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := first.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)
	res, err = first.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().False(res.Allowed)

	// Same key, same parameters, but a separate instance with its own store.
	res, err = second.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestWindowSlidesContinuously() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 3, Duration: time.Minute}, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "key")
		ts.Require().NoError(err)
		ts.Require().True(res.Allowed)
	}

	// One millisecond before the first request leaves the window: still rejected.
	clk.Advance(time.Minute - time.Millisecond)
	res, err := limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.False(res.Allowed)

	// Two milliseconds later the oldest request has left and the quota frees up.
	clk.Advance(2 * time.Millisecond)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestWindowBoundaryFavorsCaller() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)

	// Exactly one window later the previous request counts as expired.
	clk.Advance(time.Minute)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestRejectionsDoNotConsumeQuota() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)

	// Hammer the exhausted key, none of it may extend the window.
	for i := 0; i < 50; i++ {
		clk.Advance(time.Second)
		res, err = limiter.Allow(ctx, "key")
		ts.Require().NoError(err)
		ts.Require().False(res.Allowed)
	}

	// The single admitted request was at t=0, so the window ends at t=60s
	// regardless of the 50 rejected attempts.
	clk.Advance(10*time.Second + time.Millisecond)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestRetryAfterWaitGuaranteesAdmission() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 2, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)
	clk.Advance(10 * time.Millisecond)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)

	clk.Advance(10 * time.Millisecond)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().False(res.Allowed)
	ts.True(res.ResetAt.Equal(clk.Now().Add(res.RetryAfter)))

	// Waiting the advertised wait rounded up to full seconds must admit, never reject again.
	clk.Advance(time.Duration(math.Ceil(res.RetryAfter.Seconds())) * time.Second)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestSweepEvictsElapsedEntries() {
	clk := newFakeClock()
	limiter, err := NewSlidingWindowLimiterWithOpts(Rate{Count: 5, Duration: time.Minute}, SlidingWindowOpts{SweepEvery: 1})
	ts.Require().NoError(err)
	limiter.now = clk.Now
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		res, allowErr := limiter.Allow(ctx, key)
		ts.Require().NoError(allowErr)
		ts.Require().True(res.Allowed)
	}
	ts.Equal(3, limiter.Len())

	// Once the window fully elapses, the next call collects all stale entries.
	clk.Advance(time.Minute + time.Millisecond)
	_, err = limiter.Allow(ctx, "fresh")
	ts.Require().NoError(err)
	ts.Equal(1, limiter.Len())
}

func (ts *SlidingWindowLimiterTestSuite) TestSweepKeepsEntriesWithRecentActivity() {
	clk := newFakeClock()
	limiter, err := NewSlidingWindowLimiterWithOpts(Rate{Count: 5, Duration: time.Minute}, SlidingWindowOpts{SweepEvery: 1})
	ts.Require().NoError(err)
	limiter.now = clk.Now
	ctx := context.Background()

	_, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	clk.Advance(30 * time.Second)
	_, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)

	// At t=70s the first request has left the window but the second is still
	// inside, so the entry must survive the sweep.
	clk.Advance(40 * time.Second)
	_, err = limiter.Allow(ctx, "other")
	ts.Require().NoError(err)
	ts.Equal(2, limiter.Len())
}

func (ts *SlidingWindowLimiterTestSuite) TestResetDropsAllTrackedKeys() {
	clk := newFakeClock()
	limiter := ts.newLimiterOnClock(Rate{Count: 1, Duration: time.Minute}, clk)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().True(res.Allowed)
	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.Require().False(res.Allowed)

	limiter.reset()
	ts.Equal(0, limiter.Len())

	res, err = limiter.Allow(ctx, "key")
	ts.Require().NoError(err)
	ts.True(res.Allowed)
}

func (ts *SlidingWindowLimiterTestSuite) TestConcurrentAccessKeepsQuota() {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 50, Duration: time.Minute})
	ts.Require().NoError(err)
	ctx := context.Background()

	var allowed, failed atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				res, allowErr := limiter.Allow(ctx, "shared")
				if allowErr != nil {
					failed.Inc()
					continue
				}
				if res.Allowed {
					allowed.Inc()
				}
			}
		}()
	}
	wg.Wait()

	ts.Equal(int32(0), failed.Load())
	ts.Equal(int32(50), allowed.Load())
}
