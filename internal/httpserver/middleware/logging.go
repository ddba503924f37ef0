/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ssgreg/logf"
	"github.com/vasayxtx/go-glob"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

const (
	// LoggingSecretQueryPlaceholder replaces the values of secret query parameters in logged URIs.
	LoggingSecretQueryPlaceholder = "_HIDDEN_"

	userAgentLogFieldKey = "user_agent"

	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// CustomLoggerProvider returns a custom logger or nil based on the request.
type CustomLoggerProvider func(r *http.Request) log.FieldLogger

// LoggingOpts tunes the Logging middleware.
type LoggingOpts struct {
	RequestStart           bool
	RequestHeaders         map[string]string
	ExcludedEndpoints      []string // glob patterns, e.g. "/healthz" or "/assets/*"
	SecretQueryParams      []string
	AddRequestInfoToLogger bool
	SlowRequestThreshold   time.Duration // requests at least this slow get the "time_slots" field group
	// CustomLoggerProvider overrides the middleware logger per request when it returns non-nil.
	CustomLoggerProvider CustomLoggerProvider
}

type loggingHandler struct {
	next              http.Handler
	logger            log.FieldLogger
	opts              LoggingOpts
	excludedEndpoints []func(urlPath string) bool
}

// Logging is a middleware writing an access-log line for every finished request
// and putting a logger annotated with both request ids into the request context.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return LoggingWithOpts(logger, LoggingOpts{RequestStart: false})
}

// LoggingWithOpts is a configurable version of Logging.
func LoggingWithOpts(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	if opts.SlowRequestThreshold == 0 {
		opts.SlowRequestThreshold = 1 * time.Second
	}
	excluded := make([]func(urlPath string) bool, 0, len(opts.ExcludedEndpoints))
	for _, pattern := range opts.ExcludedEndpoints {
		excluded = append(excluded, glob.Compile(pattern))
	}
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger, opts: opts, excludedEndpoints: excluded}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startTime := GetRequestStartTimeFromContext(ctx)
	if startTime.IsZero() {
		startTime = time.Now()
		ctx = NewContextWithRequestStartTime(ctx, startTime)
	}

	nextLogger := h.logger
	if h.opts.CustomLoggerProvider != nil {
		if l := h.opts.CustomLoggerProvider(r); l != nil {
			nextLogger = l
		}
	}
	nextLogger = nextLogger.With(
		log.String("request_id", GetRequestIDFromContext(ctx)),
		log.String("int_request_id", GetInternalRequestIDFromContext(ctx)),
	)

	logger := nextLogger.With(h.requestLogFields(r)...)
	if h.opts.AddRequestInfoToLogger {
		nextLogger = logger
	}

	skipLog := h.isLoggingDisabled(r.URL.Path)

	if h.opts.RequestStart && !skipLog {
		logger.Info("request started")
	}

	lp := &LoggingParams{}
	r = r.WithContext(NewContextWithLoggingParams(NewContextWithLogger(ctx, nextLogger), lp))
	wrw := WrapResponseWriterIfNeeded(rw, r.ProtoMajor)
	h.next.ServeHTTP(wrw, r)

	if !skipLog || wrw.Status() >= http.StatusBadRequest {
		duration := time.Since(startTime)
		if duration >= h.opts.SlowRequestThreshold {
			lp.AddTimeSlotDurationInMs("writing_response_ms", wrw.ElapsedTime())
			lp.fields = append(lp.fields, log.Field{Key: "time_slots", Type: logf.FieldTypeObject, Any: lp.timeSlots})
		}
		logger.Info(
			fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
			append([]log.Field{
				log.Int64("duration_ms", duration.Milliseconds()),
				log.Int("status", wrw.Status()),
				log.Int("bytes_sent", wrw.BytesWritten()),
			}, lp.fields...)...,
		)
	}
}

// requestLogFields collects the request attributes every access-log line carries.
func (h *loggingHandler) requestLogFields(r *http.Request) []log.Field {
	fields := make([]log.Field, 0, 8)
	fields = append(fields,
		log.String("method", r.Method),
		log.String("uri", h.requestURIForLog(r)),
		log.String("remote_addr", r.RemoteAddr),
		log.Int64("content_length", r.ContentLength),
		log.String(userAgentLogFieldKey, r.UserAgent()),
	)

	if addrIP, addrPort, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		fields = append(fields, log.String("remote_addr_ip", addrIP))
		if port, pErr := strconv.ParseUint(addrPort, 10, 16); pErr == nil {
			fields = append(fields, log.Uint16("remote_addr_port", uint16(port)))
		}
	}

	if originAddr := getOriginAddr(r); originAddr != "" {
		fields = append(fields, log.String("origin_addr", originAddr))
	}

	for headerName, logKey := range h.opts.RequestHeaders {
		fields = append(fields, log.String(logKey, r.Header.Get(headerName)))
	}
	return fields
}

func (h *loggingHandler) requestURIForLog(r *http.Request) string {
	if len(h.opts.SecretQueryParams) == 0 || r.URL.RawQuery == "" {
		return r.RequestURI
	}
	query := r.URL.Query()
	for _, k := range h.opts.SecretQueryParams {
		vals := query[k]
		for i := range vals {
			if vals[i] != "" {
				vals[i] = LoggingSecretQueryPlaceholder
			}
		}
	}
	return r.URL.Path + "?" + query.Encode()
}

func (h *loggingHandler) isLoggingDisabled(urlPath string) bool {
	for _, match := range h.excludedEndpoints {
		if match(urlPath) {
			return true
		}
	}
	return false
}

func getOriginAddr(r *http.Request) string {
	if forwardFor := r.Header.Get(headerForwardedFor); forwardFor != "" {
		remoteAddr := forwardFor
		first := strings.IndexByte(forwardFor, ',')
		if first != -1 {
			remoteAddr = forwardFor[:first]
		}
		return strings.TrimSpace(remoteAddr)
	}

	if realIP := r.Header.Get(headerRealIP); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	return ""
}
