/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/retry"
)

// Defaults applied by NewRetryableRoundTripperWithOpts when the option is zero.
const (
	DefaultMaxRetryAttempts                  = 10
	DefaultExponentialBackoffInitialInterval = time.Second
	DefaultExponentialBackoffMultiplier      = 2
)

// UnlimitedRetryAttempts as MaxRetryAttempts leaves the backoff policy as the
// only thing that stops retrying.
const UnlimitedRetryAttempts = -1

// RetryAttemptNumberHeader carries the ordinal of the retry attempt on retried requests.
const RetryAttemptNumberHeader = "X-Retry-Attempt"

// CheckRetryFunc decides, after each attempt, whether the request
// should be sent again.
type CheckRetryFunc func(ctx context.Context, resp *http.Response, roundTripErr error, doneRetryAttempts int) (bool, error)

// RetryableRoundTripper wraps another http.RoundTripper and retries failed requests,
// honoring the Retry-After response header. The shopgenfy outbound clients
// (GenAI, image generation, object storage) put it at the end of their transport chain.
type RetryableRoundTripper struct {
	// Delegate is the wrapped round tripper that actually sends requests.
	Delegate http.RoundTripper

	// Logger is used for logging. For a context-specific logger use LoggerProvider instead.
	Logger log.FieldLogger

	// LoggerProvider is a function that provides a context-specific logger,
	// e.g. one carrying the ID of the API request that triggered the outbound call.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// MaxRetryAttempts limits retries, so up to MaxRetryAttempts+1 requests may be sent in total.
	// UnlimitedRetryAttempts delegates stopping to BackoffPolicy.
	// DefaultMaxRetryAttempts is used when zero.
	MaxRetryAttempts int

	// CheckRetry decides after each attempt whether the next one is needed.
	// DefaultCheckRetry is used when nil.
	CheckRetry CheckRetryFunc

	// IgnoreRetryAfter, when true, makes the round tripper compute every delay
	// from BackoffPolicy even if the response carries a Retry-After header.
	IgnoreRetryAfter bool

	// BackoffPolicy computes the delay before the next attempt when the response
	// has no Retry-After header or IgnoreRetryAfter is set. Defaults to DefaultBackoffPolicy.
	BackoffPolicy retry.Policy
}

// RetryableRoundTripperOpts represents options for RetryableRoundTripper.
// The fields mirror the corresponding RetryableRoundTripper fields, see their docs.
type RetryableRoundTripperOpts struct {
	Logger           log.FieldLogger
	LoggerProvider   func(ctx context.Context) log.FieldLogger
	MaxRetryAttempts int
	CheckRetryFunc   CheckRetryFunc
	IgnoreRetryAfter bool
	BackoffPolicy    retry.Policy
}

// NewRetryableRoundTripper wraps delegate with the default retry options.
func NewRetryableRoundTripper(delegate http.RoundTripper) (*RetryableRoundTripper, error) {
	return NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{})
}

// NewRetryableRoundTripperWithOpts creates a new instance of RetryableRoundTripper with specified options.
func NewRetryableRoundTripperWithOpts(
	delegate http.RoundTripper, opts RetryableRoundTripperOpts,
) (*RetryableRoundTripper, error) {
	switch {
	case opts.MaxRetryAttempts == 0:
		opts.MaxRetryAttempts = DefaultMaxRetryAttempts
	case opts.MaxRetryAttempts < 0 && opts.MaxRetryAttempts != UnlimitedRetryAttempts:
		return nil, fmt.Errorf("incorrect max retry attempts")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.CheckRetryFunc == nil {
		opts.CheckRetryFunc = DefaultCheckRetry
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = DefaultBackoffPolicy
	}
	return &RetryableRoundTripper{
		Delegate:         delegate,
		Logger:           opts.Logger,
		LoggerProvider:   opts.LoggerProvider,
		MaxRetryAttempts: opts.MaxRetryAttempts,
		CheckRetry:       opts.CheckRetryFunc,
		BackoffPolicy:    opts.BackoffPolicy,
		IgnoreRetryAfter: opts.IgnoreRetryAfter,
	}, nil
}

// RoundTrip sends the request and retries it while CheckRetry tells to,
// waiting between attempts according to Retry-After or the backoff policy.
// nolint: gocyclo
func (rt *RetryableRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rewindBody := func(r *http.Request) error { return nil }
	if req.Body != nil {
		origBody := req.Body
		defer func() {
			_ = origBody.Close() // Per RoundTripper contract.
		}()

		var err error
		if rewindBody, err = makeRequestBodyRewindable(req); err != nil {
			return nil, &RetryableRoundTripperError{Inner: err}
		}
	}

	nextDelay := rt.makeDelayFunc()
	ctx := req.Context()
	cloned := false

	var resp *http.Response
	var tripErr error
	for attempt := 0; ; attempt++ {
		if rewindErr := rewindBody(req); rewindErr != nil {
			if attempt == 0 {
				return nil, &RetryableRoundTripperError{Inner: rewindErr}
			}
			rt.logger(ctx).Error(
				fmt.Sprintf("cannot rewind request body between retry attempts, %d request(s) done", attempt+1),
				log.Error(rewindErr))
			return resp, tripErr
		}

		// The previous response body must be drained and closed before the next attempt.
		if resp != nil && tripErr == nil {
			drainResponseBody(resp, rt.logger(ctx))
		}

		if attempt > 0 {
			if !cloned {
				req, cloned = req.Clone(req.Context()), true // Per RoundTripper contract.
			}
			req.Header.Set(RetryAttemptNumberHeader, strconv.Itoa(attempt))
		}

		resp, tripErr = rt.Delegate.RoundTrip(req)

		needRetry, checkErr := rt.CheckRetry(ctx, resp, tripErr, attempt)
		if checkErr != nil {
			rt.logger(ctx).Error(
				fmt.Sprintf("cannot check if retry is needed, %d request(s) done", attempt+1),
				log.Error(checkErr))
			return resp, tripErr
		}
		if !needRetry {
			return resp, tripErr
		}

		if rt.MaxRetryAttempts > 0 && attempt >= rt.MaxRetryAttempts {
			rt.logger(ctx).Warnf("max retry attempts exceeded (%d), %d request(s) done",
				rt.MaxRetryAttempts, attempt+1)
			return resp, tripErr
		}
		delay, stop := nextDelay(resp)
		if stop {
			return resp, tripErr
		}

		select {
		case <-ctx.Done():
			rt.logger(ctx).Warnf("context canceled (%v) while waiting for the next retry attempt, %d request(s) done",
				ctx.Err(), attempt+1)
			return resp, tripErr
		case <-time.After(delay):
		}
	}
}

// makeDelayFunc binds one backoff instance to one RoundTrip call,
// so concurrent requests through the same round tripper don't share backoff state.
func (rt *RetryableRoundTripper) makeDelayFunc() func(resp *http.Response) (delay time.Duration, stop bool) {
	bf := rt.BackoffPolicy.NewBackOff()
	return func(resp *http.Response) (delay time.Duration, stop bool) {
		if resp != nil && !rt.IgnoreRetryAfter {
			if retryAfter, ok := retryAfterFromResponse(resp); ok {
				return retryAfter, false
			}
		}
		delay = bf.NextBackOff()
		return delay, delay == backoff.Stop
	}
}

func (rt *RetryableRoundTripper) logger(ctx context.Context) log.FieldLogger {
	if rt.LoggerProvider != nil {
		return rt.LoggerProvider(ctx)
	}
	return rt.Logger
}

// RetryableRoundTripperError reports a request that cannot even be
// attempted again, e.g. when its body cannot be rewound.
type RetryableRoundTripperError struct {
	Inner error
}

func (e *RetryableRoundTripperError) Error() string {
	return fmt.Sprintf("retryable round trip: %s", e.Inner.Error())
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *RetryableRoundTripperError) Unwrap() error {
	return e.Inner
}

// DefaultCheckRetry retries on temporary transport errors, 429 and 5xx responses.
func DefaultCheckRetry(
	ctx context.Context, resp *http.Response, roundTripErr error, doneRetryAttempts int,
) (needRetry bool, err error) {
	if roundTripErr != nil {
		return CheckErrorIsTemporary(roundTripErr), nil
	}
	if resp == nil {
		return false, fmt.Errorf("both response and round trip error are nil")
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError, nil
}

// DefaultBackoffPolicy is an exponential backoff starting at
// DefaultExponentialBackoffInitialInterval and doubling on each attempt.
var DefaultBackoffPolicy = retry.PolicyFunc(func() backoff.BackOff {
	bf := backoff.NewExponentialBackOff()
	bf.InitialInterval = DefaultExponentialBackoffInitialInterval
	bf.Multiplier = DefaultExponentialBackoffMultiplier
	bf.Reset()
	return bf
})

// CheckErrorIsTemporary reports whether a transport error is worth retrying.
func CheckErrorIsTemporary(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var terr interface{ Temporary() bool }
	ok := errors.As(err, &terr)
	return ok && terr.Temporary()
}

// retryAfterFromResponse supports both forms of the Retry-After header,
// delay seconds and an HTTP date.
func retryAfterFromResponse(resp *http.Response) (retryAfter time.Duration, ok bool) {
	val := resp.Header.Get("Retry-After")
	if val == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	date, err := time.Parse(time.RFC1123, val)
	if err != nil {
		return 0, false
	}
	return time.Until(date), true
}
