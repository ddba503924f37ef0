/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vasayxtx/go-glob"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/ratelimit"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
)

// RateLimitRejectionMessage is a message that is sent in a response body
// when the request is rejected by the middleware that limits the rate of HTTP requests.
const RateLimitRejectionMessage = "Too many requests. Please try again later."

// RateLimitFallbackKey is a key under which requests are counted when the client address
// cannot be derived from the request. All such requests share a single quota.
const RateLimitFallbackKey = "127.0.0.1"

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

// rateLimitMaxKeyLen limits keys derived from request headers, longer values are treated as garbage.
const rateLimitMaxKeyLen = 100

// RateLimitAlg represents a type for specifying rate-limiting algorithm.
type RateLimitAlg int

// Supported rate-limiting algorithms.
const (
	RateLimitAlgSlidingWindow RateLimitAlg = iota
	RateLimitAlgLeakyBucket
)

// Rate describes the frequency of requests.
type Rate = ratelimit.Rate

// RateLimitParams contains data that relates to the rate limiting procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ErrDomain          string
	ResponseStatusCode int
	GetRetryAfter      RateLimitGetRetryAfterFunc
	Key                string
	MaxRate            Rate
	QuotaHeaders       bool
	Result             ratelimit.Result
}

// RateLimitGetRetryAfterFunc is a function that is called to get a value for Retry-After response HTTP header
// when the rate limit is exceeded.
type RateLimitGetRetryAfterFunc func(r *http.Request, estimatedTime time.Duration) time.Duration

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when an error occurs during the rate limiting.
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting key for rate limiting.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// RateLimitSkipFunc is a function that is called before any rate limiting work is done.
// When it returns true, the request is served right away and the limiter state is left untouched.
type RateLimitSkipFunc func(r *http.Request) bool

// RateLimitMetricsCollector is an interface for collecting metrics about the rate limiting.
type RateLimitMetricsCollector interface {
	// IncRateLimitRejects increments the counter of requests rejected due to the rate limit.
	IncRateLimitRejects(dryRun bool)
}

// RateLimitTrackedKeysRegistry is an optional interface for metrics collectors
// able to report how many keys the limiters currently track. The middleware registers
// a source per limiter that exposes its key count (see ratelimit.SlidingWindowLimiter.Len).
type RateLimitTrackedKeysRegistry interface {
	AddRateLimitTrackedKeysSource(src func() int)
}

type disabledRateLimitMetrics struct{}

func (disabledRateLimitMetrics) IncRateLimitRejects(bool) {}

type rateLimitHandler struct {
	next           http.Handler
	limiter        ratelimit.Limiter
	getKey         RateLimitGetKeyFunc
	skip           RateLimitSkipFunc
	errDomain      string
	respStatusCode int
	getRetryAfter  RateLimitGetRetryAfterFunc
	maxRate        Rate
	quotaHeaders   bool
	dryRun         bool
	metrics        RateLimitMetricsCollector

	onReject RateLimitOnRejectFunc
	onError  RateLimitOnErrorFunc
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if h.skip != nil && h.skip(r) {
		h.next.ServeHTTP(rw, r)
		return
	}

	key, bypass, err := h.getKey(r)
	if err != nil {
		h.onError(rw, r, h.makeParams(key, ratelimit.Result{}),
			fmt.Errorf("get key for rate limit: %w", err), h.next, GetLoggerFromContext(r.Context()))
		return
	}
	if bypass {
		h.next.ServeHTTP(rw, r)
		return
	}

	result, err := h.limiter.Allow(r.Context(), key)
	if err != nil {
		h.onError(rw, r, h.makeParams(key, ratelimit.Result{}),
			fmt.Errorf("do rate limiting for key %q: %w", key, err), h.next, GetLoggerFromContext(r.Context()))
		return
	}
	if !result.Allowed {
		h.metrics.IncRateLimitRejects(h.dryRun)
		h.onReject(rw, r, h.makeParams(key, result), h.next, GetLoggerFromContext(r.Context()))
		return
	}

	h.next.ServeHTTP(rw, r)
}

func (h *rateLimitHandler) makeParams(key string, result ratelimit.Result) RateLimitParams {
	return RateLimitParams{
		ErrDomain:          h.errDomain,
		ResponseStatusCode: h.respStatusCode,
		GetRetryAfter:      h.getRetryAfter,
		Key:                key,
		MaxRate:            h.maxRate,
		QuotaHeaders:       h.quotaHeaders,
		Result:             result,
	}
}

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// Alg selects the rate-limiting algorithm. Sliding window is used by default.
	Alg RateLimitAlg

	// MaxBurst is the number of requests that may exceed the rate momentarily. Used by the leaky bucket algorithm only.
	MaxBurst int

	// MaxKeys is the maximum number of keys kept by the leaky bucket algorithm.
	MaxKeys int

	// GetKey derives the limiting key from the request. DefaultRateLimitGetKey is used when nil.
	GetKey RateLimitGetKeyFunc

	// Skip allows to bypass rate limiting for some requests (e.g. for static assets).
	// Skipped requests are served immediately and don't touch the limiter state.
	Skip RateLimitSkipFunc

	// ResponseStatusCode is an HTTP status code for rejection responses. 429 is used when zero.
	ResponseStatusCode int

	// GetRetryAfter overrides the value for the Retry-After response header.
	GetRetryAfter RateLimitGetRetryAfterFunc

	// DisableQuotaHeaders turns off the X-RateLimit-Limit, X-RateLimit-Remaining
	// and X-RateLimit-Reset headers on rejection responses. The Retry-After header is always sent.
	DisableQuotaHeaders bool

	// DryRun makes the middleware only log and count rejections instead of responding with them.
	DryRun bool

	// Limiter overrides the constructed limiter. It allows sharing one limiter between middlewares
	// and exposing its state in metrics. When it's set, Alg, MaxBurst and MaxKeys are ignored.
	Limiter ratelimit.Limiter

	// MetricsCollector counts rejected requests. Metrics are not collected when nil.
	MetricsCollector RateLimitMetricsCollector

	OnReject         RateLimitOnRejectFunc
	OnRejectInDryRun RateLimitOnRejectFunc
	OnError          RateLimitOnErrorFunc
}

// RateLimit is a middleware that limits the rate of HTTP requests.
// Requests are counted per client address (see DefaultRateLimitGetKey)
// using the sliding window algorithm, and rejected with 429 and the Retry-After header when the quota is spent.
func RateLimit(maxRate Rate, errDomain string) (func(next http.Handler) http.Handler, error) {
	return RateLimitWithOpts(maxRate, errDomain, RateLimitOpts{})
}

// MustRateLimit is a version of RateLimit that panics if an error occurs.
func MustRateLimit(maxRate Rate, errDomain string) func(next http.Handler) http.Handler {
	mw, err := RateLimit(maxRate, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// RateLimitWithOpts is a configurable version of a middleware to limit the rate of HTTP requests.
// An error is returned for invalid rates so that a misconfigured service fails at startup, not on the first request.
func RateLimitWithOpts(maxRate Rate, errDomain string, opts RateLimitOpts) (func(next http.Handler) http.Handler, error) {
	limiter := opts.Limiter
	if limiter == nil {
		var err error
		if limiter, err = makeRateLimitLimiter(maxRate, opts); err != nil {
			return nil, err
		}
	}

	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}
	getKey := opts.GetKey
	if getKey == nil {
		getKey = DefaultRateLimitGetKey
	}
	getRetryAfter := opts.GetRetryAfter
	if getRetryAfter == nil {
		getRetryAfter = GetRetryAfterEstimatedTime
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledRateLimitMetrics{}
	}
	if registry, ok := metrics.(RateLimitTrackedKeysRegistry); ok {
		if counter, ok := limiter.(interface{ Len() int }); ok {
			registry.AddRateLimitTrackedKeysSource(counter.Len)
		}
	}

	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{
			next:           next,
			limiter:        limiter,
			getKey:         getKey,
			skip:           opts.Skip,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			getRetryAfter:  getRetryAfter,
			maxRate:        maxRate,
			quotaHeaders:   !opts.DisableQuotaHeaders,
			dryRun:         opts.DryRun,
			metrics:        metrics,
			onReject:       makeRateLimitOnRejectFunc(opts),
			onError:        makeRateLimitOnErrorFunc(opts),
		}
	}, nil
}

// MustRateLimitWithOpts is a version of RateLimitWithOpts that panics if an error occurs.
func MustRateLimitWithOpts(maxRate Rate, errDomain string, opts RateLimitOpts) func(next http.Handler) http.Handler {
	mw, err := RateLimitWithOpts(maxRate, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func makeRateLimitLimiter(maxRate Rate, opts RateLimitOpts) (ratelimit.Limiter, error) {
	switch opts.Alg {
	case RateLimitAlgSlidingWindow:
		return ratelimit.NewSlidingWindowLimiter(maxRate)
	case RateLimitAlgLeakyBucket:
		return ratelimit.NewLeakyBucketLimiter(maxRate, opts.MaxBurst, opts.MaxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limit alg %d", opts.Alg)
	}
}

// DefaultRateLimitGetKey derives the rate limiting key from the X-Forwarded-For request header.
// The first address of the list is used. When the header is absent or its value doesn't look
// like an address, RateLimitFallbackKey is returned. This is a fairness heuristic,
// not a protection against clients that spoof the header.
func DefaultRateLimitGetKey(r *http.Request) (key string, bypass bool, err error) {
	addr := r.Header.Get(headerForwardedFor)
	if i := strings.IndexByte(addr, ','); i != -1 {
		addr = addr[:i]
	}
	addr = strings.TrimSpace(addr)
	if !isPlausibleClientAddr(addr) {
		return RateLimitFallbackKey, false, nil
	}
	return addr, false, nil
}

// isPlausibleClientAddr loosely checks that the value looks like an IPv4/IPv6 address or a hostname.
// It only protects the limiter store from garbage keys and doesn't replace address parsing.
func isPlausibleClientAddr(s string) bool {
	if s == "" || len(s) > rateLimitMaxKeyLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '.' || c == ':' || c == '-' || c == '_' || c == '[' || c == ']':
		default:
			return false
		}
	}
	return true
}

// RateLimitSkipByPathPatterns makes a skip function that bypasses rate limiting for requests
// whose URL path matches any of the passed glob patterns (e.g. "/assets/*", "/healthz").
func RateLimitSkipByPathPatterns(patterns ...string) RateLimitSkipFunc {
	matchers := make([]func(s string) bool, 0, len(patterns))
	for _, pattern := range patterns {
		matchers = append(matchers, glob.Compile(pattern))
	}
	return func(r *http.Request) bool {
		for _, match := range matchers {
			if match(r.URL.Path) {
				return true
			}
		}
		return false
	}
}

// GetRetryAfterEstimatedTime returns estimated time after that the client may retry the request.
func GetRetryAfterEstimatedTime(_ *http.Request, estimatedTime time.Duration) time.Duration {
	return estimatedTime
}

// RateLimitResponseData is a body of the response that is sent when the rate limit is exceeded.
// RetryAfter is advisory and rounded up to whole seconds, a client retrying after it must be admitted.
type RateLimitResponseData struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

// DefaultRateLimitOnReject sends a rejection response with the advisory Retry-After header
// and, unless they are disabled, the X-RateLimit-* quota headers.
func DefaultRateLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}

	retryAfter := params.Result.RetryAfter
	if params.GetRetryAfter != nil {
		retryAfter = params.GetRetryAfter(r, retryAfter)
	}
	retryAfterSecs := int(math.Ceil(retryAfter.Seconds()))

	rw.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	if params.QuotaHeaders {
		rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(params.MaxRate.Count))
		rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(params.Result.Remaining))
		rw.Header().Set("X-RateLimit-Reset", strconv.FormatInt(unixSecondsCeil(params.Result.ResetAt), 10))
	}

	if logger != nil {
		logger.Warn("too many requests", log.Int("retry_after_secs", retryAfterSecs))
	}
	restapi.RespondCodeAndJSON(rw, params.ResponseStatusCode,
		RateLimitResponseData{Error: RateLimitRejectionMessage, RetryAfter: retryAfterSecs}, logger)
}

// DefaultRateLimitOnError sends an internal error response when something goes wrong during the rate limiting.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultRateLimitOnRejectInDryRun continues serving the request when the rate limit is exceeded in the dry-run mode.
func DefaultRateLimitOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("too many requests, serving will be continued because of dry run mode",
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeRateLimitOnRejectFunc(opts RateLimitOpts) RateLimitOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultRateLimitOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultRateLimitOnReject
}

func makeRateLimitOnErrorFunc(opts RateLimitOpts) RateLimitOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultRateLimitOnError
}

// unixSecondsCeil converts t to Unix seconds rounding up, so that a client waiting
// until the advertised moment never hits the still-occupied window.
func unixSecondsCeil(t time.Time) int64 {
	secs := t.Unix()
	if t.Nanosecond() > 0 {
		secs++
	}
	return secs
}

// RateLimitPrometheusMetricsOpts represents an options for RateLimitPrometheusMetrics.
type RateLimitPrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// RateLimitPrometheusMetrics represents collector of metrics about rate limited HTTP requests.
// Besides the rejection counter it exports a gauge with the number of keys the limiters
// currently track, summed over all limiters registered via AddRateLimitTrackedKeysSource.
type RateLimitPrometheusMetrics struct {
	RejectedTotal *prometheus.CounterVec
	TrackedKeys   prometheus.GaugeFunc

	mu                 sync.Mutex
	trackedKeysSources []func() int
}

// NewRateLimitPrometheusMetrics creates a new metrics collector.
func NewRateLimitPrometheusMetrics() *RateLimitPrometheusMetrics {
	return NewRateLimitPrometheusMetricsWithOpts(RateLimitPrometheusMetricsOpts{})
}

// NewRateLimitPrometheusMetricsWithOpts is a more configurable version of creating RateLimitPrometheusMetrics.
func NewRateLimitPrometheusMetricsWithOpts(opts RateLimitPrometheusMetricsOpts) *RateLimitPrometheusMetrics {
	m := &RateLimitPrometheusMetrics{}
	m.RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_rejects_total",
			Help:        "Total number of requests rejected due to the rate limit.",
			ConstLabels: opts.ConstLabels,
		},
		[]string{"dry_run"},
	)
	m.TrackedKeys = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_tracked_keys",
			Help:        "Number of keys currently tracked by the rate limiters.",
			ConstLabels: opts.ConstLabels,
		},
		m.countTrackedKeys,
	)
	return m
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (m *RateLimitPrometheusMetrics) MustRegister() {
	prometheus.MustRegister(m.RejectedTotal, m.TrackedKeys)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (m *RateLimitPrometheusMetrics) Unregister() {
	prometheus.Unregister(m.RejectedTotal)
	prometheus.Unregister(m.TrackedKeys)
}

// IncRateLimitRejects increments the counter of requests rejected due to the rate limit.
func (m *RateLimitPrometheusMetrics) IncRateLimitRejects(dryRun bool) {
	m.RejectedTotal.With(prometheus.Labels{"dry_run": strconv.FormatBool(dryRun)}).Inc()
}

// AddRateLimitTrackedKeysSource registers src as a contributor to the tracked keys gauge.
// Implements RateLimitTrackedKeysRegistry interface.
func (m *RateLimitPrometheusMetrics) AddRateLimitTrackedKeysSource(src func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackedKeysSources = append(m.trackedKeysSources, src)
}

func (m *RateLimitPrometheusMetrics) countTrackedKeys() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, src := range m.trackedKeysSources {
		total += src()
	}
	return float64(total)
}
