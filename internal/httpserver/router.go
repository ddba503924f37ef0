/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
)

// RouterOpts configures NewRouter.
type RouterOpts struct {
	ServiceNameInURL   string
	APIRoutes          map[APIVersion]APIRoute
	RootMiddlewares    []func(http.Handler) http.Handler
	ErrorDomain        string
	HealthCheck        HealthCheck
	HealthCheckContext HealthCheckContext
	MetricsHandler     http.Handler
}

// NewRouter creates a chi.Router serving /metrics, /healthz and the versioned
// API tree under /api/<service>.
func NewRouter(logger log.FieldLogger, opts RouterOpts) chi.Router {
	router := chi.NewRouter()
	configureRouter(router, logger, opts)
	return router
}

// nolint // hugeParam: opts is heavy, it's ok in this case.
func configureRouter(router chi.Router, logger log.FieldLogger, opts RouterOpts) {
	router.Use(opts.RootMiddlewares...)

	promHandler := opts.MetricsHandler
	if opts.MetricsHandler == nil {
		promHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", promHandler)

	healthCheckHandler := NewHealthCheckHandler(opts.HealthCheck)
	if opts.HealthCheckContext != nil {
		healthCheckHandler = NewHealthCheckHandlerContext(opts.HealthCheckContext)
	}
	router.Method(http.MethodGet, "/healthz", healthCheckHandler)

	router.Route(fmt.Sprintf("/api/%s", opts.ServiceNameInURL), func(router chi.Router) {
		for ver, r := range opts.APIRoutes {
			router.Route(fmt.Sprintf("/v%d", ver), r)
		}
	})

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, logger)
	})

	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, logger)
	})
}

// applyDefaultMiddlewaresToRouter installs the shared middleware chain:
// request start time, request ID, logging, recovery, metrics, the server-wide
// rate limit and the request body cap.
//
// nolint // hugeParam: opts is heavy, it's ok in this case.
func applyDefaultMiddlewaresToRouter(
	router chi.Router,
	cfg *Config,
	logger log.FieldLogger,
	opts Opts,
	httpReqMetrics *middleware.HTTPRequestMetricsCollector,
	rateLimitMetrics *middleware.RateLimitPrometheusMetrics,
) error {
	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
		})
	})

	router.Use(middleware.RequestID())

	logOpts := middleware.LoggingOpts{
		RequestStart:           cfg.Log.RequestStart,
		RequestHeaders:         make(map[string]string, len(cfg.Log.RequestHeaders)),
		ExcludedEndpoints:      cfg.Log.ExcludedEndpoints,
		SecretQueryParams:      cfg.Log.SecretQueryParams,
		AddRequestInfoToLogger: cfg.Log.AddRequestInfoToLogger,
		SlowRequestThreshold:   time.Duration(cfg.Log.SlowRequestThreshold),
	}
	for _, headerName := range cfg.Log.RequestHeaders {
		logFieldKey := "req_header_" + strings.ToLower(strings.ReplaceAll(headerName, "-", "_"))
		logOpts.RequestHeaders[headerName] = logFieldKey
	}
	router.Use(middleware.LoggingWithOpts(logger, logOpts))

	router.Use(middleware.Recovery(opts.ErrorDomain))

	getRoutePattern := GetChiRoutePattern
	if opts.HTTPRequestMetrics.GetRoutePattern != nil {
		getRoutePattern = opts.HTTPRequestMetrics.GetRoutePattern
	}
	router.Use(middleware.HTTPRequestMetricsWithOpts(httpReqMetrics, getRoutePattern,
		middleware.HTTPRequestMetricsOpts{
			GetUserAgentType:  opts.HTTPRequestMetrics.GetUserAgentType,
			ExcludedEndpoints: systemEndpoints,
		}))

	// Server-wide rate limiting. System endpoints are not limited.
	if cfg.Limits.Rate.Count != 0 {
		rateLimitMw, err := middleware.RateLimitWithOpts(
			middleware.Rate{Count: cfg.Limits.Rate.Count, Duration: cfg.Limits.Rate.Duration},
			opts.ErrorDomain,
			middleware.RateLimitOpts{
				Alg:              middleware.RateLimitAlgLeakyBucket,
				MaxBurst:         cfg.Limits.BurstLimit,
				Skip:             middleware.RateLimitSkipByPathPatterns(systemEndpoints...),
				MetricsCollector: rateLimitMetrics,
			})
		if err != nil {
			return fmt.Errorf("create rate limit middleware: %w", err)
		}
		router.Use(rateLimitMw)
	}

	if cfg.Limits.MaxBodySizeBytes > 0 {
		router.Use(middleware.RequestBodyLimit(uint64(cfg.Limits.MaxBodySizeBytes), opts.ErrorDomain))
	}

	return nil
}

// GetChiRoutePattern extracts the chi route pattern from the request,
// resolving it with a throwaway routing context when the request has not been
// routed yet (see https://github.com/go-chi/chi/issues/270).
func GetChiRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	routePath := r.URL.RawPath
	if routePath == "" {
		routePath = r.URL.Path
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return ""
	}
	return tctx.RoutePattern()
}
