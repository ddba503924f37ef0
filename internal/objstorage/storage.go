/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package objstorage provides a client for the object storage service
// that keeps assembled submission packages and generated images.
package objstorage

import (
	"context"
	"fmt"
	"io"
)

// UploadParams describes an object to be uploaded.
type UploadParams struct {
	// Key is a slash-separated object key, e.g. "submissions/abc123/manifest.json".
	Key string

	// ContentType is a MIME type of the object content.
	ContentType string
}

// StoredObject describes an uploaded object.
type StoredObject struct {
	Key  string
	URL  string
	Size int64
}

// Storage is an interface for storing submission package objects.
type Storage interface {
	// EnsureFolder makes sure the folder with the given name exists.
	// Creating an already existing folder is not an error.
	EnsureFolder(ctx context.Context, name string) error

	// Upload stores the object content under the given key.
	Upload(ctx context.Context, params UploadParams, content io.Reader) (StoredObject, error)

	// ObjectURL returns a URL by which the object with the given key can be downloaded.
	ObjectURL(ctx context.Context, key string) (string, error)
}

// StorageError is returned when the storage service responds with a non-2xx status.
type StorageError struct {
	StatusCode int
	Message    string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object storage request failed: status %d: %s", e.StatusCode, e.Message)
}
