/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Default parameter values for RateLimitingRoundTripper.
const (
	DefaultRateLimitingBurst       = 1
	DefaultRateLimitingWaitTimeout = 15 * time.Second
)

// RateLimitingRoundTripperAdaptation tunes following a limit the remote side
// reports in a response header. GenAI providers typically send X-RateLimit-Limit.
type RateLimitingRoundTripperAdaptation struct {
	ResponseHeaderName string
	SlackPercent       int
}

// RateLimitingRoundTripperOpts holds the optional parameters of RateLimitingRoundTripper.
type RateLimitingRoundTripperOpts struct {
	Burst       int
	WaitTimeout time.Duration
	Adaptation  RateLimitingRoundTripperAdaptation
}

// RateLimitingRoundTripper paces outgoing requests with a token bucket.
// When adaptation is configured, the effective limit follows the value the
// remote side reports, never exceeding the configured one.
type RateLimitingRoundTripper struct {
	Delegate http.RoundTripper

	rateLimiter *rate.Limiter

	RateLimit   int
	Burst       int
	WaitTimeout time.Duration
	Adaptation  RateLimitingRoundTripperAdaptation
}

// NewRateLimitingRoundTripper creates a new RateLimitingRoundTripper with the given requests-per-second limit.
func NewRateLimitingRoundTripper(delegate http.RoundTripper, rateLimit int) (*RateLimitingRoundTripper, error) {
	return NewRateLimitingRoundTripperWithOpts(delegate, rateLimit, RateLimitingRoundTripperOpts{})
}

// NewRateLimitingRoundTripperWithOpts is NewRateLimitingRoundTripper with options.
// Zero option values fall back to the defaults.
func NewRateLimitingRoundTripperWithOpts(
	delegate http.RoundTripper, rateLimit int, opts RateLimitingRoundTripperOpts,
) (*RateLimitingRoundTripper, error) {
	switch {
	case rateLimit <= 0:
		return nil, fmt.Errorf("rate limit must be positive")
	case opts.Burst < 0:
		return nil, fmt.Errorf("burst must be positive")
	case opts.Adaptation.SlackPercent < 0 || opts.Adaptation.SlackPercent > 100:
		return nil, fmt.Errorf("slack percent must be in range [0..100]")
	}

	if opts.Burst == 0 {
		opts.Burst = DefaultRateLimitingBurst
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultRateLimitingWaitTimeout
	}

	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), opts.Burst),
		RateLimit:   rateLimit,
		Burst:       opts.Burst,
		WaitTimeout: opts.WaitTimeout,
		Adaptation:  opts.Adaptation,
	}, nil
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *RateLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		defer func() {
			_ = r.Body.Close() // Per RoundTripper contract.
		}()
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.rateLimiter.Wait(ctx); err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			return nil, &RateLimitingWaitError{Inner: err}
		}
	}

	resp, err := rt.Delegate.RoundTrip(r)
	if err != nil {
		return resp, err
	}

	if rt.Adaptation.ResponseHeaderName != "" {
		rt.applyLimit(rt.limitFromResponse(resp))
	}

	return resp, nil
}

// limitFromResponse extracts the remote limit minus the configured slack,
// 0 when the response carries no usable value.
func (rt *RateLimitingRoundTripper) limitFromResponse(resp *http.Response) int {
	headerVal := resp.Header.Get(rt.Adaptation.ResponseHeaderName)
	if headerVal == "" {
		return 0
	}

	remoteLimit, err := strconv.Atoi(headerVal)
	if err != nil || remoteLimit < 0 {
		return 0
	}

	remoteLimit = (remoteLimit * (100 - rt.Adaptation.SlackPercent)) / 100
	if remoteLimit == 0 {
		return 1 // Send 1 request per second instead of stopping at all.
	}
	return remoteLimit
}

func (rt *RateLimitingRoundTripper) applyLimit(newRateLimit int) {
	// A response without the header restores the configured limit, and the
	// remote value never raises it above the configured one.
	if newRateLimit == 0 || newRateLimit > rt.RateLimit {
		newRateLimit = rt.RateLimit
	}

	if rt.rateLimiter.Limit() != rate.Limit(newRateLimit) {
		rt.rateLimiter.SetLimit(rate.Limit(newRateLimit))
	}
}

// RateLimitingWaitError is returned when the wait for a free slot timed out.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the wrapped error.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}
