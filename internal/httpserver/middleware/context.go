/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyInternalRequestID
	ctxKeyLogger
	ctxKeyLoggingParams
	ctxKeyRequestStartTime
	ctxKeyHTTPMetricsEnabled
)

func getStringFromContext(ctx context.Context, key ctxKey) string {
	value := ctx.Value(key)
	if value == nil {
		return ""
	}
	return value.(string)
}

// NewContextWithRequestID returns a context carrying the external request id.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext returns the external request id, or "" when absent.
func GetRequestIDFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyRequestID)
}

// NewContextWithInternalRequestID returns a context carrying the internal request id.
func NewContextWithInternalRequestID(ctx context.Context, internalRequestID string) context.Context {
	return context.WithValue(ctx, ctxKeyInternalRequestID, internalRequestID)
}

// GetInternalRequestIDFromContext returns the internal request id, or "" when absent.
func GetInternalRequestIDFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyInternalRequestID)
}

// NewContextWithLogger returns a context carrying the request logger.
func NewContextWithLogger(ctx context.Context, logger log.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logger)
}

// GetLoggerFromContext returns the request logger, or nil when absent.
func GetLoggerFromContext(ctx context.Context) log.FieldLogger {
	value := ctx.Value(ctxKeyLogger)
	if value == nil {
		return nil
	}
	return value.(log.FieldLogger)
}

// NewContextWithLoggingParams returns a context carrying the logging params.
func NewContextWithLoggingParams(ctx context.Context, loggingParams *LoggingParams) context.Context {
	return context.WithValue(ctx, ctxKeyLoggingParams, loggingParams)
}

// GetLoggingParamsFromContext returns the logging params, or nil when absent.
func GetLoggingParamsFromContext(ctx context.Context) *LoggingParams {
	value := ctx.Value(ctxKeyLoggingParams)
	if value == nil {
		return nil
	}
	return value.(*LoggingParams)
}

// NewContextWithRequestStartTime returns a context carrying the request start time.
func NewContextWithRequestStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyRequestStartTime, startTime)
}

// GetRequestStartTimeFromContext returns the request start time, or the zero time when absent.
func GetRequestStartTimeFromContext(ctx context.Context) time.Time {
	startTime, _ := ctx.Value(ctxKeyRequestStartTime).(time.Time)
	return startTime
}

// NewContextWithHTTPMetricsEnabled creates a new context marking that metrics are collected for the request.
// Handlers may opt the request out later with DisableHTTPMetricsInContext (e.g. for hijacked connections).
func NewContextWithHTTPMetricsEnabled(ctx context.Context) context.Context {
	enabled := true
	return context.WithValue(ctx, ctxKeyHTTPMetricsEnabled, &enabled)
}

// DisableHTTPMetricsInContext excludes the request from metrics collection.
func DisableHTTPMetricsInContext(ctx context.Context) {
	if enabled, ok := ctx.Value(ctxKeyHTTPMetricsEnabled).(*bool); ok {
		*enabled = false
	}
}

// IsHTTPMetricsEnabledInContext reports whether metrics are collected for the request.
func IsHTTPMetricsEnabledInContext(ctx context.Context) bool {
	enabled, ok := ctx.Value(ctxKeyHTTPMetricsEnabled).(*bool)
	return ok && *enabled
}
