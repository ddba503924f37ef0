/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides an HTTP client that is configurable via the config package
// and assembles retries, rate limiting, logging, metrics, User-Agent and request ID
// propagation as a chain of round trippers.
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// CloneHTTPRequest creates a shallow copy of the request along with a deep copy of the Headers.
func CloneHTTPRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = CloneHTTPHeader(req.Header)
	return r
}

// CloneHTTPHeader creates a deep copy of an http.Header.
func CloneHTTPHeader(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		newValues := make([]string, len(values))
		copy(newValues, values)
		out[key] = newValues
	}
	return out
}

// New creates an *http.Client with the transport chain configured by cfg.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must is like New but panics on error.
func Must(cfg *Config) *http.Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// UserAgent is a user agent string.
	UserAgent string

	// RequestType is a type of request. e.g. service 'genai', an action 'upload' or specific information to correlate.
	RequestType string

	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	RequestIDProvider func(ctx context.Context) string

	// Collector is a metrics collector.
	Collector MetricsCollector
}

// NewWithOpts creates an *http.Client whose transport chain adds, innermost
// first: logging, metrics, rate limiting, User-Agent, request id propagation
// and retries. Retries stay outermost so that every attempt is rate-limited,
// measured and logged separately.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	transport, err := buildTransport(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

func buildTransport(cfg *Config, opts Opts) (http.RoundTripper, error) {
	transport := opts.Delegate
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.Log.Enabled {
		logOpts := cfg.Log.TransportOpts()
		logOpts.RequestType = opts.RequestType
		logOpts.LoggerProvider = opts.LoggerProvider
		transport = NewLoggingRoundTripperWithOpts(transport, logOpts)
	}

	if cfg.Metrics.Enabled {
		transport = NewMetricsRoundTripperWithOpts(transport, MetricsRoundTripperOpts{
			RequestType: opts.RequestType,
			Collector:   opts.Collector,
		})
	}

	if cfg.RateLimits.Enabled {
		var err error
		transport, err = NewRateLimitingRoundTripperWithOpts(
			transport, cfg.RateLimits.Limit, cfg.RateLimits.TransportOpts())
		if err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}

	if opts.UserAgent != "" {
		transport = NewUserAgentRoundTripper(transport, opts.UserAgent)
	}

	transport = NewRequestIDRoundTripperWithOpts(transport, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	if cfg.Retries.Enabled {
		retryOpts := cfg.Retries.TransportOpts()
		retryOpts.LoggerProvider = opts.LoggerProvider
		retryOpts.BackoffPolicy = cfg.Retries.GetPolicy()
		var err error
		transport, err = NewRetryableRoundTripperWithOpts(transport, retryOpts)
		if err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	return transport, nil
}

// MustWithOpts is like NewWithOpts but panics on error.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}
