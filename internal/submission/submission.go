/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package submission holds the Shopify App Store submission aggregate,
// its in-memory store and the exporter that packages a submission into object storage.
package submission

import (
	"time"

	"github.com/rs/xid"

	"github.com/Muminur/shopgenfy-sub002/internal/genai"
)

// Status is a lifecycle state of a submission.
type Status string

// Submission lifecycle states.
const (
	StatusDraft    Status = "draft"
	StatusReady    Status = "ready"
	StatusExported Status = "exported"
)

// Listing is the App Store listing content of a submission.
type Listing struct {
	AppName        string   `json:"appName"`
	Tagline        string   `json:"tagline"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Features       []string `json:"features"`
	Keywords       []string `json:"keywords"`
	LandingPageURL string   `json:"landingPageUrl"`
	SupportEmail   string   `json:"supportEmail"`
	PricingSummary string   `json:"pricingSummary"`
}

// ImageAsset is a generated image attached to a submission.
// B64Data carries the image content for upload, URL points at the provider-hosted copy.
type ImageAsset struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url,omitempty"`
	B64Data     string `json:"-"`
}

// Submission is an App Store submission being assembled.
type Submission struct {
	ID        string
	UserID    string
	Status    Status
	Listing   Listing
	Analysis  *genai.LandingPageAnalysis
	Images    []ImageAsset
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a draft submission owned by the given user.
func New(userID string, listing Listing) *Submission {
	now := time.Now().UTC()
	return &Submission{
		ID:        xid.New().String(),
		UserID:    userID,
		Status:    StatusDraft,
		Listing:   listing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
