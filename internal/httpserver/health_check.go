/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
)

// StatusClientClosedRequest is the Nginx convention for a client that went
// away before the response was sent.
const StatusClientClosedRequest = 499

// HealthCheckComponentName names a checked component, e.g. "genai-provider"
// or "object-storage".
type HealthCheckComponentName = string

// HealthCheckStatus is a resulting status of the health-check.
type HealthCheckStatus int

const (
	HealthCheckStatusOK HealthCheckStatus = iota
	HealthCheckStatusFail
)

// HealthCheckResult maps each checked component to its status.
type HealthCheckResult = map[HealthCheckComponentName]HealthCheckStatus

// HealthCheck reports the status of the service's components.
type HealthCheck = func() (HealthCheckResult, error)

// HealthCheckContext is a HealthCheck with access to the request context.
type HealthCheckContext = func(ctx context.Context) (HealthCheckResult, error)

type healthCheckResponseData struct {
	Components map[string]bool `json:"components"`
}

// HealthCheckHandler serves the health-check endpoint.
type HealthCheckHandler struct {
	healthCheckFn HealthCheckContext
}

// NewHealthCheckHandler creates a HealthCheckHandler around fn.
// A nil fn reports an empty, healthy result.
func NewHealthCheckHandler(fn HealthCheck) *HealthCheckHandler {
	if fn == nil {
		fn = func() (HealthCheckResult, error) {
			return HealthCheckResult{}, nil
		}
	}
	return &HealthCheckHandler{func(_ context.Context) (HealthCheckResult, error) {
		return fn()
	}}
}

// NewHealthCheckHandlerContext is NewHealthCheckHandler for a context-aware check.
func NewHealthCheckHandlerContext(fn HealthCheckContext) *HealthCheckHandler {
	if fn == nil {
		fn = func(ctx context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{}, ctx.Err()
		}
	}
	return &HealthCheckHandler{fn}
}

// ServeHTTP responds 200 when every component is healthy, 503 when any is not.
func (h *HealthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	hcResult, err := h.healthCheckFn(r.Context())
	if err != nil {
		if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
			logger.Error("error while checking health", log.Error(err))
		}
		if errors.Is(err, context.Canceled) {
			rw.WriteHeader(StatusClientClosedRequest)
			return
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	respStatus := http.StatusOK
	respData := healthCheckResponseData{Components: map[string]bool{}}
	for name, status := range hcResult {
		healthy := status == HealthCheckStatusOK
		respData.Components[name] = healthy
		if !healthy {
			respStatus = http.StatusServiceUnavailable
		}
	}

	if errors.Is(r.Context().Err(), context.Canceled) {
		rw.WriteHeader(StatusClientClosedRequest)
		return
	}

	restapi.RespondCodeAndJSON(rw, respStatus, respData, middleware.GetLoggerFromContext(r.Context()))
}
