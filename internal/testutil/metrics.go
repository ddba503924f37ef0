/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherSingleMetric registers the collector in a fresh pedantic registry and
// gathers it back, expecting exactly one metric family with one metric.
func gatherSingleMetric(t assert.TestingT, c prometheus.Collector) (*prometheus.Registry, bool) {
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(c)) {
		return nil, false
	}
	return reg, true
}

// AssertSamplesCountInHistogram asserts that passed prometheus.Histogram contains the specified number of samples.
func AssertSamplesCountInHistogram(t assert.TestingT, hist prometheus.Histogram, wantSamplesCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg, ok := gatherSingleMetric(t, hist)
	if !ok {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) || !assert.Len(t, gotMetrics, 1) {
		return false
	}
	return assert.Equal(t, wantSamplesCount, int(gotMetrics[0].GetMetric()[0].Histogram.GetSampleCount()))
}

// AssertSamplesCountInCounter asserts that passed prometheus.Counter has proper value.
func AssertSamplesCountInCounter(t assert.TestingT, counter prometheus.Counter, wantCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg, ok := gatherSingleMetric(t, counter)
	if !ok {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) || !assert.Len(t, gotMetrics, 1) {
		return false
	}
	return assert.Equal(t, wantCount, int(gotMetrics[0].GetMetric()[0].GetCounter().GetValue()))
}

// RequireSamplesCountInCounter calls AssertSamplesCountInCounter and fail test immediately in case of error.
func RequireSamplesCountInCounter(t require.TestingT, counter prometheus.Counter, wantCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertSamplesCountInCounter(t, counter, wantCount) {
		t.FailNow()
	}
}

// AssertGaugeValue asserts that passed prometheus gauge (incl. GaugeFunc) has proper value.
func AssertGaugeValue(t assert.TestingT, gauge prometheus.Collector, wantValue float64) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	reg, ok := gatherSingleMetric(t, gauge)
	if !ok {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) || !assert.Len(t, gotMetrics, 1) {
		return false
	}
	return assert.Equal(t, wantValue, gotMetrics[0].GetMetric()[0].GetGauge().GetValue())
}

// RequireGaugeValue calls AssertGaugeValue and fail test immediately in case of error.
func RequireGaugeValue(t require.TestingT, gauge prometheus.Collector, wantValue float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertGaugeValue(t, gauge, wantValue) {
		t.FailNow()
	}
}
