/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package imagegen provides a client for the image generation service
// and an asynchronous job queue around it. Generation is slow (tens of seconds per image),
// so handlers enqueue jobs and clients poll their status instead of waiting on the request.
package imagegen

import (
	"context"
	"fmt"
	"time"
)

// GenerateRequest describes a single image to be generated.
type GenerateRequest struct {
	// Prompt is a text description of the desired image.
	Prompt string

	// Size is a "WIDTHxHEIGHT" string, e.g. "1024x1024". The service default is used when it's empty.
	Size string
}

// GeneratedImage is a single generated image returned by the service.
type GeneratedImage struct {
	Prompt      string `json:"prompt"`
	URL         string `json:"url,omitempty"`
	B64Data     string `json:"b64Data,omitempty"`
	ContentType string `json:"contentType"`
}

// ImageProvider is an interface for the image generation service.
type ImageProvider interface {
	// Generate produces one image for the given prompt.
	Generate(ctx context.Context, req GenerateRequest) (*GeneratedImage, error)
}

// ProviderError is returned when the image generation service responds with a non-2xx status.
type ProviderError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("image provider request failed: status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may be retried later with a chance of success.
func (e *ProviderError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
