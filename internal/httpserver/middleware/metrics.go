/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	httpRequestMetricsLabelMethod        = "method"
	httpRequestMetricsLabelRoutePattern  = "route_pattern"
	httpRequestMetricsLabelUserAgentType = "user_agent_type"
	httpRequestMetricsLabelStatusCode    = "status_code"
)

const (
	userAgentTypeBrowser    = "browser"
	userAgentTypeHTTPClient = "http-client"
)

// DefaultHTTPRequestDurationBuckets covers both fast CRUD handlers and the slow
// submission endpoints that call out to GenAI and image generation.
var DefaultHTTPRequestDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 150, 300, 600}

// HTTPRequestMetricsCollectorOpts configures HTTPRequestMetricsCollector construction.
type HTTPRequestMetricsCollectorOpts struct {
	// Namespace is prepended to all metric names.
	Namespace string

	// DurationBuckets overrides DefaultHTTPRequestDurationBuckets.
	DurationBuckets []float64

	// ConstLabels are attached to every sample.
	ConstLabels prometheus.Labels
}

// HTTPRequestMetricsCollector holds the Prometheus metrics for incoming HTTP requests.
// Durations is labeled by method, route pattern, user agent type and status code;
// InFlight by the same labels minus status code.
type HTTPRequestMetricsCollector struct {
	Durations *prometheus.HistogramVec
	InFlight  *prometheus.GaugeVec
}

// NewHTTPRequestMetricsCollector creates a collector with default options.
func NewHTTPRequestMetricsCollector() *HTTPRequestMetricsCollector {
	return NewHTTPRequestMetricsCollectorWithOpts(HTTPRequestMetricsCollectorOpts{})
}

// NewHTTPRequestMetricsCollectorWithOpts creates a collector with the given options.
func NewHTTPRequestMetricsCollectorWithOpts(opts HTTPRequestMetricsCollectorOpts) *HTTPRequestMetricsCollector {
	buckets := opts.DurationBuckets
	if buckets == nil {
		buckets = DefaultHTTPRequestDurationBuckets
	}
	return &HTTPRequestMetricsCollector{
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "http_request_duration_seconds",
				Help:        "A histogram of the HTTP request durations.",
				Buckets:     buckets,
				ConstLabels: opts.ConstLabels,
			},
			[]string{
				httpRequestMetricsLabelMethod,
				httpRequestMetricsLabelRoutePattern,
				httpRequestMetricsLabelUserAgentType,
				httpRequestMetricsLabelStatusCode,
			},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   opts.Namespace,
				Name:        "http_requests_in_flight",
				Help:        "Current number of HTTP requests being served.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{
				httpRequestMetricsLabelMethod,
				httpRequestMetricsLabelRoutePattern,
				httpRequestMetricsLabelUserAgentType,
			},
		),
	}
}

// MustRegister registers the collector's metrics in the default Prometheus registry
// and panics on error.
func (c *HTTPRequestMetricsCollector) MustRegister() {
	prometheus.MustRegister(c.Durations, c.InFlight)
}

// Unregister removes the collector's metrics from the default Prometheus registry.
func (c *HTTPRequestMetricsCollector) Unregister() {
	prometheus.Unregister(c.InFlight)
	prometheus.Unregister(c.Durations)
}

func (c *HTTPRequestMetricsCollector) observeDuration(
	method, routePattern, userAgentType string, status int, startTime time.Time,
) {
	labels := requestMetricsLabels(method, routePattern, userAgentType)
	labels[httpRequestMetricsLabelStatusCode] = strconv.Itoa(status)
	c.Durations.With(labels).Observe(time.Since(startTime).Seconds())
}

func requestMetricsLabels(method, routePattern, userAgentType string) prometheus.Labels {
	return prometheus.Labels{
		httpRequestMetricsLabelMethod:        method,
		httpRequestMetricsLabelRoutePattern:  routePattern,
		httpRequestMetricsLabelUserAgentType: userAgentType,
	}
}

// UserAgentTypeGetterFunc classifies the request's user agent.
// The set of return values must be finite, it becomes a label value.
type UserAgentTypeGetterFunc func(r *http.Request) string

// HTTPRequestMetricsOpts configures the HTTPRequestMetrics middleware.
type HTTPRequestMetricsOpts struct {
	GetUserAgentType  UserAgentTypeGetterFunc
	ExcludedEndpoints []string
}

type httpRequestMetricsHandler struct {
	next            http.Handler
	collector       *HTTPRequestMetricsCollector
	getRoutePattern RoutePatternGetterFunc
	opts            HTTPRequestMetricsOpts
}

// HTTPRequestMetrics is a middleware that measures incoming HTTP requests with Prometheus.
func HTTPRequestMetrics(
	collector *HTTPRequestMetricsCollector, getRoutePattern RoutePatternGetterFunc,
) func(next http.Handler) http.Handler {
	return HTTPRequestMetricsWithOpts(collector, getRoutePattern, HTTPRequestMetricsOpts{})
}

// HTTPRequestMetricsWithOpts is a more configurable version of HTTPRequestMetrics.
func HTTPRequestMetricsWithOpts(
	collector *HTTPRequestMetricsCollector,
	getRoutePattern RoutePatternGetterFunc,
	opts HTTPRequestMetricsOpts,
) func(next http.Handler) http.Handler {
	if getRoutePattern == nil {
		panic("route pattern getter must not be nil")
	}
	if opts.GetUserAgentType == nil {
		opts.GetUserAgentType = classifyUserAgent
	}
	return func(next http.Handler) http.Handler {
		return &httpRequestMetricsHandler{next: next, collector: collector, getRoutePattern: getRoutePattern, opts: opts}
	}
}

func (h *httpRequestMetricsHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if h.isExcluded(r.URL.Path) {
		h.next.ServeHTTP(rw, r)
		return
	}

	startTime := GetRequestStartTimeFromContext(r.Context())
	if startTime.IsZero() {
		startTime = time.Now()
		r = r.WithContext(NewContextWithRequestStartTime(r.Context(), startTime))
	}

	method := r.Method
	routePattern := h.getRoutePattern(r)
	userAgentType := h.opts.GetUserAgentType(r)

	inFlight := h.collector.InFlight.With(requestMetricsLabels(method, routePattern, userAgentType))
	inFlight.Inc()
	defer inFlight.Dec()

	r = r.WithContext(NewContextWithHTTPMetricsEnabled(r.Context()))

	wrw := WrapResponseWriterIfNeeded(rw, r.ProtoMajor)
	defer func() {
		if !IsHTTPMetricsEnabledInContext(r.Context()) {
			return
		}

		// Before routing, the pattern may be unknown. The router fills it in while serving.
		if routePattern == "" {
			routePattern = h.getRoutePattern(r)
		}
		if p := recover(); p != nil {
			if p != http.ErrAbortHandler {
				h.collector.observeDuration(method, routePattern, userAgentType, http.StatusInternalServerError, startTime)
			}
			panic(p)
		}
		h.collector.observeDuration(method, routePattern, userAgentType, wrw.Status(), startTime)
	}()

	h.next.ServeHTTP(wrw, r)
}

func (h *httpRequestMetricsHandler) isExcluded(urlPath string) bool {
	for _, excluded := range h.opts.ExcludedEndpoints {
		if urlPath == excluded {
			return true
		}
	}
	return false
}

func classifyUserAgent(r *http.Request) string {
	if strings.Contains(strings.ToLower(r.UserAgent()), "mozilla") {
		return userAgentTypeBrowser
	}
	return userAgentTypeHTTPClient
}
