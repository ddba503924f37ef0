/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package httpserver provides a configurable HTTP server with a predefined middleware chain
// (request IDs, structured logging, panic recovery, metrics, service-wide rate limiting,
// request body size limiting) and standard /healthz and /metrics endpoints.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/service"
)

// systemEndpoints is a list of endpoints which are not involved in metrics collecting and rate limiting.
var systemEndpoints = []string{"/metrics", "/healthz"}

// APIVersion numbers a mounted API route tree.
type APIVersion = int

// APIRoute mounts the handlers of one API version on a router.
type APIRoute = func(router chi.Router)

// HTTPRequestMetricsOpts represents options for HTTPRequestMetrics middleware that used in HTTPServer.
type HTTPRequestMetricsOpts struct {
	// Metrics opts.
	Namespace       string
	DurationBuckets []float64
	ConstLabels     prometheus.Labels

	// Middleware opts.
	GetUserAgentType middleware.UserAgentTypeGetterFunc
	GetRoutePattern  middleware.RoutePatternGetterFunc
}

// Opts configures New.
type Opts struct {
	// ServiceNameInURL is the service segment of API paths ("/api/<name>/v1").
	ServiceNameInURL string
	// APIRoutes maps an API version to the function mounting its routes.
	APIRoutes map[APIVersion]APIRoute
	// RootMiddlewares are applied to the root router, before the default chain.
	RootMiddlewares []func(http.Handler) http.Handler
	// ErrorDomain is the domain reported in error response bodies.
	ErrorDomain string
	// HealthCheck reports per-component health for /healthz.
	HealthCheck HealthCheck
	// HealthCheckContext is a context-aware variant of HealthCheck, preferred when both are set.
	HealthCheckContext HealthCheckContext
	// MetricsHandler overrides the default promhttp handler on /metrics.
	MetricsHandler http.Handler
	// HTTPRequestMetrics tunes the request metrics middleware and its collector.
	HTTPRequestMetrics HTTPRequestMetricsOpts
}

// HTTPServer wraps http.Server with the router, logging and metrics of the service.
// It implements service.Unit and service.MetricsRegisterer interfaces.
type HTTPServer struct {
	HTTPServer      *http.Server
	TLS             TLSConfig
	HTTPRouter      chi.Router
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	started          atomic.Bool
	serveDone        chan struct{}
	httpReqMetrics   *middleware.HTTPRequestMetricsCollector
	rateLimitMetrics *middleware.RateLimitPrometheusMetrics
}

var _ service.Unit = (*HTTPServer)(nil)
var _ service.MetricsRegisterer = (*HTTPServer)(nil)

// New creates a new HTTPServer with predefined logging, metrics collecting, rate limiting,
// recovering after panics and health-checking functionality.
func New(cfg *Config, logger log.FieldLogger, opts Opts) (*HTTPServer, error) { //nolint // hugeParam: opts is heavy, it's ok in this case.
	httpReqMetrics := middleware.NewHTTPRequestMetricsCollectorWithOpts(
		middleware.HTTPRequestMetricsCollectorOpts{
			Namespace:       opts.HTTPRequestMetrics.Namespace,
			DurationBuckets: opts.HTTPRequestMetrics.DurationBuckets,
			ConstLabels:     opts.HTTPRequestMetrics.ConstLabels,
		})
	rateLimitMetrics := middleware.NewRateLimitPrometheusMetricsWithOpts(
		middleware.RateLimitPrometheusMetricsOpts{
			Namespace:   opts.HTTPRequestMetrics.Namespace,
			ConstLabels: opts.HTTPRequestMetrics.ConstLabels,
		})

	router := chi.NewRouter()
	if err := applyDefaultMiddlewaresToRouter(router, cfg, logger, opts, httpReqMetrics, rateLimitMetrics); err != nil {
		return nil, err
	}
	configureRouter(router, logger, RouterOpts{
		ServiceNameInURL:   opts.ServiceNameInURL,
		APIRoutes:          opts.APIRoutes,
		RootMiddlewares:    opts.RootMiddlewares,
		ErrorDomain:        opts.ErrorDomain,
		HealthCheck:        opts.HealthCheck,
		HealthCheckContext: opts.HealthCheckContext,
		MetricsHandler:     opts.MetricsHandler,
	})

	return &HTTPServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			WriteTimeout:      time.Duration(cfg.Timeouts.Write),
			ReadTimeout:       time.Duration(cfg.Timeouts.Read),
			ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeader),
			IdleTimeout:       time.Duration(cfg.Timeouts.Idle),
			Handler:           router,
		},
		TLS:              cfg.TLS,
		HTTPRouter:       router,
		Logger:           logger,
		ShutdownTimeout:  time.Duration(cfg.Timeouts.Shutdown),
		serveDone:        make(chan struct{}),
		httpReqMetrics:   httpReqMetrics,
		rateLimitMetrics: rateLimitMetrics,
	}, nil
}

// Start binds the listen address and serves requests until the server stops.
// It blocks and is supposed to be called in a separate goroutine.
// Bind failures and unexpected serve errors are sent to the fatalError channel.
func (s *HTTPServer) Start(fatalError chan<- error) {
	s.started.Store(true)
	defer close(s.serveDone)

	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("read_header_timeout", s.HTTPServer.ReadHeaderTimeout),
		log.Duration("idle_timeout", s.HTTPServer.IdleTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)
	logger.Info("starting HTTP server...")

	listener, err := net.Listen("tcp", s.HTTPServer.Addr)
	if err != nil {
		logger.Error("HTTP server listen error", log.Error(err))
		fatalError <- err
		return
	}

	if s.TLS.Enabled {
		err = s.HTTPServer.ServeTLS(listener, s.TLS.Certificate, s.TLS.Key)
	} else {
		err = s.HTTPServer.Serve(listener)
	}
	switch {
	case err == nil:
	case errors.Is(err, http.ErrServerClosed):
		logger.Info("HTTP server closed")
	default:
		logger.Error("HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops the HTTP server. When gracefully is true, in-flight requests are
// given ShutdownTimeout to complete; otherwise active connections are closed.
func (s *HTTPServer) Stop(gracefully bool) error {
	if !gracefully {
		s.Logger.Info("closing HTTP server...")
		if err := s.HTTPServer.Close(); err != nil {
			s.Logger.Error("HTTP server closing error", log.Error(err))
			return err
		}
		s.waitServeDone()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	s.Logger.Info("shutting down HTTP server...", log.Duration("timeout", s.ShutdownTimeout))
	if err := s.HTTPServer.Shutdown(ctx); err != nil {
		s.Logger.Error("HTTP server shutdown error", log.Error(err))
		return err
	}
	s.Logger.Info("HTTP server shut down")
	s.waitServeDone()

	return nil
}

// waitServeDone waits for the listener to be closed after Serve returned.
func (s *HTTPServer) waitServeDone() {
	if s.started.Load() {
		<-s.serveDone
	}
}

// MustRegisterMetrics registers the collectors with Prometheus, panicking on a registration error.
func (s *HTTPServer) MustRegisterMetrics() {
	s.httpReqMetrics.MustRegister()
	s.rateLimitMetrics.MustRegister()
}

// UnregisterMetrics removes the collectors from the Prometheus registry.
func (s *HTTPServer) UnregisterMetrics() {
	s.rateLimitMetrics.Unregister()
	s.httpReqMetrics.Unregister()
}
