/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// LoggingMode selects which outgoing requests get logged.
type LoggingMode string

const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid reports whether the mode is one of the known values.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripperOpts holds the optional parameters of LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// RequestType is a type of request, e.g. a service name ("genai") or an action ("upload")
	// to correlate.
	RequestType string

	// LoggerProvider is a function that provides a context-specific logger.
	// middleware.GetLoggerFromContext is used by default.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Mode of logging: none, all, failed.
	Mode LoggingMode

	// SlowRequestThreshold suppresses logging of requests that finished faster.
	SlowRequestThreshold time.Duration
}

// LoggingRoundTripper logs outgoing requests with their duration and outcome,
// and accounts the time spent into the server request's logging params so a
// slow listing generation can be attributed to the provider call.
type LoggingRoundTripper struct {
	Delegate http.RoundTripper
	Opts     LoggingRoundTripperOpts
}

// NewLoggingRoundTripperWithOpts creates a new LoggingRoundTripper.
func NewLoggingRoundTripperWithOpts(delegate http.RoundTripper, opts LoggingRoundTripperOpts) http.RoundTripper {
	return &LoggingRoundTripper{
		Delegate: delegate,
		Opts:     opts,
	}
}

func (rt *LoggingRoundTripper) getLogger(ctx context.Context) log.FieldLogger {
	if rt.Opts.LoggerProvider != nil {
		return rt.Opts.LoggerProvider(ctx)
	}

	return middleware.GetLoggerFromContext(ctx)
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(r)
	}

	ctx := r.Context()
	logger := rt.getLogger(ctx)
	reqType := rt.Opts.RequestType
	if reqType == "" {
		reqType = DefaultRequestType
	}
	start := time.Now()

	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)
	if logger != nil && elapsed >= rt.Opts.SlowRequestThreshold {
		common := "client http request %s %s req type %s "
		args := []interface{}{r.Method, r.URL.String(), reqType, elapsed.Seconds(), err}
		message := common + "time taken %.3f, err %+v"
		loggerAtLevel := logger.Infof

		if resp != nil {
			if rt.Opts.Mode == LoggingModeFailed && resp.StatusCode < http.StatusBadRequest {
				return resp, err
			}

			args = []interface{}{r.Method, r.URL.String(), reqType, resp.StatusCode, elapsed.Seconds(), err}
			message = common + "status code %d, time taken %.3f, err %+v"
		}

		if err != nil {
			loggerAtLevel = logger.Errorf
		}

		loggerAtLevel(message, args...)
		rt.accountElapsed(ctx, reqType, elapsed)
	}

	return resp, err
}

func (rt *LoggingRoundTripper) accountElapsed(ctx context.Context, reqType string, elapsed time.Duration) {
	loggingParams := middleware.GetLoggingParamsFromContext(ctx)
	if loggingParams == nil {
		return
	}
	loggingParams.AddTimeSlotDurationInMs(fmt.Sprintf("external_request_%s_ms", reqType), elapsed)
	if requestID := middleware.GetRequestIDFromContext(ctx); requestID != "" {
		loggingParams.ExtendFields(log.String("request_id", requestID))
	}
}
