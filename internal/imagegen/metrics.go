/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsOpts represents an options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents collector of metrics about image generation jobs.
type PrometheusMetrics struct {
	JobsQueued    prometheus.Gauge
	JobsProcessed *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new metrics collector.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts is a more configurable version of creating PrometheusMetrics.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	jobsQueued := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   opts.Namespace,
		Name:        "image_gen_jobs_queued",
		Help:        "Number of image generation jobs waiting in the queue.",
		ConstLabels: opts.ConstLabels,
	})
	jobsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "image_gen_jobs_processed_total",
			Help:        "Total number of processed image generation jobs.",
			ConstLabels: opts.ConstLabels,
		},
		[]string{"status"},
	)
	return &PrometheusMetrics{JobsQueued: jobsQueued, JobsProcessed: jobsProcessed}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (m *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(m.JobsQueued, m.JobsProcessed)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (m *PrometheusMetrics) Unregister() {
	prometheus.Unregister(m.JobsQueued)
	prometheus.Unregister(m.JobsProcessed)
}
