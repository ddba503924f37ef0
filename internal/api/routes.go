/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
)

// Per-route quota profiles. Downstream clients depend on these exact numbers,
// don't change them without a deprecation cycle.
var (
	RateContentAnalysis = middleware.Rate{Count: 10, Duration: time.Minute}
	RateModelListing    = middleware.Rate{Count: 30, Duration: time.Minute}
	RateImageGenSingle  = middleware.Rate{Count: 5, Duration: time.Minute}
	RateImageGenBatch   = middleware.Rate{Count: 2, Duration: time.Minute}
	RateImageJobStatus  = middleware.Rate{Count: 60, Duration: time.Minute}
)

// RoutesOpts represents an options for Routes.
type RoutesOpts struct {
	// RateLimitMetrics counts rejected requests across all per-route limiters.
	RateLimitMetrics middleware.RateLimitMetricsCollector
}

// Routes returns the v1 API route configuration for httpserver.Opts.APIRoutes.
func (api *API) Routes() func(router chi.Router) {
	return api.RoutesWithOpts(RoutesOpts{})
}

// RoutesWithOpts is a configurable version of Routes.
// Each protected route gets its own limiter instance: a caller exhausting
// the analysis quota is still free to poll image jobs.
func (api *API) RoutesWithOpts(opts RoutesOpts) func(router chi.Router) {
	limit := func(maxRate middleware.Rate) func(http.Handler) http.Handler {
		return middleware.MustRateLimitWithOpts(maxRate, ErrDomain, middleware.RateLimitOpts{
			GetKey:           getRateLimitKey,
			MetricsCollector: opts.RateLimitMetrics,
		})
	}

	return func(router chi.Router) {
		router.Post("/submissions", api.handleCreateSubmission)
		router.Get("/submissions", api.handleListSubmissions)
		router.Get("/submissions/{submissionID}", api.handleGetSubmission)
		router.Put("/submissions/{submissionID}", api.handleUpdateSubmission)
		router.Delete("/submissions/{submissionID}", api.handleDeleteSubmission)
		router.Post("/submissions/{submissionID}/export", api.handleExportSubmission)

		router.With(limit(RateContentAnalysis)).Post("/analyze", api.handleAnalyze)
		router.With(limit(RateModelListing)).Get("/models", api.handleListModels)

		router.With(limit(RateImageGenSingle)).Post("/images/generations", api.handleGenerateImage)
		router.With(limit(RateImageGenBatch)).Post("/images/generations/batch", api.handleGenerateImageBatch)
		router.With(limit(RateImageJobStatus)).Get("/images/jobs/{jobID}", api.handleGetImageJob)
	}
}
