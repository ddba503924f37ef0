/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/genai"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/objstorage"
	"github.com/Muminur/shopgenfy-sub002/internal/retry"
)

const submissionsFolder = "submissions"

const (
	uploadRetryInitialInterval = 250 * time.Millisecond
	uploadRetryMaxAttempts     = 2
)

// ExportResult describes a packaged submission.
type ExportResult struct {
	// PackageURL is a URL of the package manifest.
	PackageURL string `json:"packageUrl"`

	// Files are object storage keys of all uploaded package files.
	Files []string `json:"files"`
}

// manifestFile describes one file of the package in the manifest.
type manifestFile struct {
	Key         string `json:"key,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType"`
}

// manifest is the machine-readable description of the package, stored as manifest.json.
type manifest struct {
	SubmissionID string                     `json:"submissionId"`
	AppName      string                     `json:"appName"`
	ExportedAt   time.Time                  `json:"exportedAt"`
	Listing      Listing                    `json:"listing"`
	Analysis     *genai.LandingPageAnalysis `json:"analysis,omitempty"`
	Files        []manifestFile             `json:"files"`
}

// Exporter packages submissions into object storage.
type Exporter struct {
	storage       objstorage.Storage
	screener      *Screener
	logger        log.FieldLogger
	uploadBackoff retry.Policy
}

// NewExporter creates a new Exporter.
func NewExporter(storage objstorage.Storage, screener *Screener, logger log.FieldLogger) *Exporter {
	return &Exporter{
		storage:       storage,
		screener:      screener,
		logger:        logger,
		uploadBackoff: retry.NewExponentialBackoffPolicy(uploadRetryInitialInterval, uploadRetryMaxAttempts),
	}
}

// Export validates the submission and uploads its package: listing.json, attached images
// and a manifest.json that references everything. A *ValidationError is returned without
// any upload when the submission isn't ready.
func (e *Exporter) Export(ctx context.Context, sub *Submission) (*ExportResult, error) {
	if err := sub.Validate(e.screener); err != nil {
		return nil, err
	}

	if err := e.storage.EnsureFolder(ctx, submissionsFolder); err != nil {
		return nil, fmt.Errorf("ensure submissions folder: %w", err)
	}

	keyPrefix := fmt.Sprintf("%s/%s", submissionsFolder, sub.ID)
	man := manifest{
		SubmissionID: sub.ID,
		AppName:      sub.Listing.AppName,
		ExportedAt:   time.Now().UTC(),
		Listing:      sub.Listing,
		Analysis:     sub.Analysis,
	}
	var files []string

	listingKey := keyPrefix + "/listing.json"
	if err := e.uploadJSON(ctx, listingKey, sub.Listing); err != nil {
		return nil, fmt.Errorf("upload listing: %w", err)
	}
	files = append(files, listingKey)
	man.Files = append(man.Files, manifestFile{Key: listingKey, ContentType: "application/json"})

	for i, image := range sub.Images {
		if image.B64Data == "" {
			// Provider-hosted image, referenced by URL instead of being re-uploaded.
			man.Files = append(man.Files, manifestFile{URL: image.URL, ContentType: image.ContentType})
			continue
		}
		content, err := base64.StdEncoding.DecodeString(image.B64Data)
		if err != nil {
			return nil, fmt.Errorf("decode image %q: %w", image.Name, err)
		}
		name := image.Name
		if name == "" {
			name = fmt.Sprintf("image-%02d", i+1)
		}
		imageKey := fmt.Sprintf("%s/images/%s", keyPrefix, name)
		if err = e.upload(ctx, imageKey, image.ContentType, content); err != nil {
			return nil, fmt.Errorf("upload image %q: %w", name, err)
		}
		files = append(files, imageKey)
		man.Files = append(man.Files, manifestFile{Key: imageKey, ContentType: image.ContentType})
	}

	manifestKey := keyPrefix + "/manifest.json"
	if err := e.uploadJSON(ctx, manifestKey, man); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}
	files = append(files, manifestKey)

	packageURL, err := e.storage.ObjectURL(ctx, manifestKey)
	if err != nil {
		return nil, fmt.Errorf("get package URL: %w", err)
	}

	e.logger.Info("submission exported",
		log.String("submission_id", sub.ID), log.Int("files", len(files)))
	return &ExportResult{PackageURL: packageURL, Files: files}, nil
}

func (e *Exporter) uploadJSON(ctx context.Context, key string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return e.upload(ctx, key, "application/json", content)
}

// upload stores the object retrying transient storage failures with exponential backoff.
func (e *Exporter) upload(ctx context.Context, key, contentType string, content []byte) error {
	notify := func(err error, delay time.Duration) {
		e.logger.Warn("object upload failed, retrying",
			log.String("key", key), log.Error(err), log.Duration("delay", delay))
	}
	return retry.DoWithRetry(ctx, e.uploadBackoff, isTransientStorageErr, notify,
		func(ctx context.Context) error {
			_, err := e.storage.Upload(ctx, objstorage.UploadParams{
				Key:         key,
				ContentType: contentType,
			}, bytes.NewReader(content))
			return err
		})
}

// isTransientStorageErr reports whether the upload may succeed on a retry.
// Client-side storage errors (4xx other than 429) are permanent, everything else
// (5xx, throttling, transport failures) is worth another attempt.
func isTransientStorageErr(err error) bool {
	var storageErr *objstorage.StorageError
	if errors.As(err, &storageErr) {
		return storageErr.StatusCode >= http.StatusInternalServerError ||
			storageErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
