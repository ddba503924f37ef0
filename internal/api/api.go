/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package api implements the REST API of the submission service.
// Every expensive route is fronted by its own sliding window rate limiter,
// quotas are never shared between routes.
package api

import (
	"errors"
	"net/http"

	"github.com/Muminur/shopgenfy-sub002/internal/genai"
	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/imagegen"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
	"github.com/Muminur/shopgenfy-sub002/internal/submission"
)

// ErrDomain is the error domain of the service's REST API.
const ErrDomain = "shopgenfy"

// HeaderUserID carries the opaque user identifier resolved by the upstream auth proxy.
const HeaderUserID = "X-User-ID"

// anonymousUserID buckets requests that reach the service without an identity.
const anonymousUserID = "anonymous"

// Error codes specific to this API.
var (
	ErrCodeSubmissionNotReady = "submissionNotReady"
	ErrCodeProviderFailure    = "providerFailure"
	ErrCodeQueueFull          = "queueFull"
)

// API holds the collaborators of all request handlers.
type API struct {
	Submissions submission.Store
	Exporter    *submission.Exporter
	Content     genai.ContentProvider
	Images      *imagegen.Manager
}

// requestLogger returns the request-scoped logger installed by the logging middleware.
// A disabled logger is returned when the middleware is not mounted (e.g. in handler tests).
func requestLogger(r *http.Request) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return log.NewDisabledLogger()
}

// userID returns the caller's opaque identifier.
func userID(r *http.Request) string {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return id
	}
	return anonymousUserID
}

// getRateLimitKey buckets quotas by user identity when it's present
// and falls back to the client address extraction otherwise.
func getRateLimitKey(r *http.Request) (key string, bypass bool, err error) {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return "user:" + id, false, nil
	}
	return middleware.DefaultRateLimitGetKey(r)
}

// respondContentProviderError maps a content provider failure to a REST error response.
// Retryable provider failures (quota, outage) become 502 so that clients distinguish them
// from this service's own 429 rejections.
func respondContentProviderError(rw http.ResponseWriter, err error, logger log.FieldLogger) {
	var provErr *genai.ProviderError
	if errors.As(err, &provErr) {
		if logger != nil {
			logger.Error("content provider request failed", log.Error(err))
		}
		statusCode := http.StatusBadGateway
		if !provErr.IsRetryable() {
			statusCode = http.StatusUnprocessableEntity
		}
		restapi.RespondError(rw, statusCode,
			restapi.NewError(ErrDomain, ErrCodeProviderFailure, "Content provider request failed."), logger)
		return
	}
	if logger != nil {
		logger.Error("content provider call failed", log.Error(err))
	}
	restapi.RespondInternalError(rw, ErrDomain, logger)
}
