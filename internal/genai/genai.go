/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package genai provides a client for the content generation service
// that analyzes app landing pages and produces structured listing content.
package genai

import (
	"context"
	"fmt"
	"time"
)

// AnalysisRequest describes a landing page analysis to be performed.
type AnalysisRequest struct {
	// URL is an address of the app landing page to analyze.
	URL string

	// Model is an identifier of the content model to use.
	// The service falls back to its default model when it's empty.
	Model string
}

// LandingPageAnalysis is structured listing content extracted from a landing page.
type LandingPageAnalysis struct {
	AppName     string   `json:"appName"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category"`
	Model       string   `json:"model"`
}

// Model describes a content model available on the generation service.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// ContentProvider is an interface for the content generation service.
type ContentProvider interface {
	// AnalyzeLandingPage extracts structured listing content from the page at the given URL.
	AnalyzeLandingPage(ctx context.Context, req AnalysisRequest) (*LandingPageAnalysis, error)

	// ListModels returns content models available for analysis.
	ListModels(ctx context.Context) ([]Model, error)
}

// ProviderError is returned when the generation service responds with a non-2xx status.
// RetryAfter is non-zero when the service advertised a backoff interval.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("content provider request failed: status %d, code %q: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("content provider request failed: status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may be retried later with a chance of success.
func (e *ProviderError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
