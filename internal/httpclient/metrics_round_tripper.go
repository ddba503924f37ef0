/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRequestType is a request type reported in logs and metrics
// when neither the client options nor the request context carry one.
const DefaultRequestType = "unknown"

// MetricsCollector receives one observation per outgoing request.
type MetricsCollector interface {
	RequestDuration(requestType, remoteAddress, summary, status string, startTime time.Time)
}

// PrometheusMetricsCollector implements MetricsCollector with a Prometheus histogram.
type PrometheusMetricsCollector struct {
	Durations *prometheus.HistogramVec
}

// NewPrometheusMetricsCollector creates a new PrometheusMetricsCollector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		Durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_request_duration_seconds",
			Help:      "A histogram of the http client requests durations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 150, 300, 600},
		}, []string{"type", "remote_address", "summary", "status"}),
	}
}

// MustRegister registers the metrics in the default Prometheus registry and panics on error.
func (p *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(p.Durations)
}

// Unregister removes the metrics from the default Prometheus registry.
func (p *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(p.Durations)
}

// RequestDuration implements the MetricsCollector interface.
func (p *PrometheusMetricsCollector) RequestDuration(requestType, host, summary, status string, start time.Time) {
	p.Durations.WithLabelValues(requestType, host, summary, status).Observe(time.Since(start).Seconds())
}

// MetricsRoundTripper measures the duration and status of outgoing requests,
// labeled with the client's request type ("genai", "imagegen", "objstorage").
type MetricsRoundTripper struct {
	Delegate    http.RoundTripper
	RequestType string
	Collector   MetricsCollector
}

// MetricsRoundTripperOpts holds the optional parameters of MetricsRoundTripper.
type MetricsRoundTripperOpts struct {
	RequestType string
	Collector   MetricsCollector
}

// NewMetricsRoundTripperWithOpts creates a new MetricsRoundTripper.
func NewMetricsRoundTripperWithOpts(delegate http.RoundTripper, opts MetricsRoundTripperOpts) http.RoundTripper {
	requestType := opts.RequestType
	if requestType == "" {
		requestType = DefaultRequestType
	}

	return &MetricsRoundTripper{Delegate: delegate, RequestType: requestType, Collector: opts.Collector}
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *MetricsRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Collector == nil {
		return rt.Delegate.RoundTrip(r)
	}

	status := "0"
	start := time.Now()

	resp, err := rt.Delegate.RoundTrip(r)
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	// The summary deliberately omits the URL path, listing and job URLs carry
	// high-cardinality IDs.
	summary := fmt.Sprintf("%s %s", r.Method, rt.RequestType)
	rt.Collector.RequestDuration(rt.RequestType, r.Host, summary, status, start)
	return resp, err
}
