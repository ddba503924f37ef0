/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package submission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/objstorage"
	"github.com/Muminur/shopgenfy-sub002/internal/retry"
)

func TestExporterExport(t *testing.T) {
	t.Run("package contains listing, images and manifest", func(t *testing.T) {
		storage := objstorage.NewMemoryStorage()
		exporter := NewExporter(storage, NewScreener(nil), log.NewDisabledLogger())

		sub := New("user-1", makeReadyListing())
		sub.Images = []ImageAsset{
			{
				Name:        "icon.png",
				ContentType: "image/png",
				B64Data:     base64.StdEncoding.EncodeToString([]byte("png-bytes")),
			},
			{
				ContentType: "image/png",
				URL:         "https://images.example.com/hosted.png",
			},
		}

		result, err := exporter.Export(context.Background(), sub)
		require.NoError(t, err)
		require.Equal(t, "memory://submissions/"+sub.ID+"/manifest.json", result.PackageURL)
		require.Equal(t, []string{
			"submissions/" + sub.ID + "/listing.json",
			"submissions/" + sub.ID + "/images/icon.png",
			"submissions/" + sub.ID + "/manifest.json",
		}, result.Files)

		imageContent, ok := storage.Object("submissions/" + sub.ID + "/images/icon.png")
		require.True(t, ok)
		require.Equal(t, "png-bytes", string(imageContent))

		manifestContent, ok := storage.Object("submissions/" + sub.ID + "/manifest.json")
		require.True(t, ok)
		var man struct {
			SubmissionID string `json:"submissionId"`
			AppName      string `json:"appName"`
			Files        []struct {
				Key         string `json:"key"`
				URL         string `json:"url"`
				ContentType string `json:"contentType"`
			} `json:"files"`
		}
		require.NoError(t, json.Unmarshal(manifestContent, &man))
		require.Equal(t, sub.ID, man.SubmissionID)
		require.Equal(t, "Acme Reviews", man.AppName)
		require.Len(t, man.Files, 3, "listing, uploaded image and the hosted image reference")
		require.Equal(t, "https://images.example.com/hosted.png", man.Files[2].URL)
	})

	t.Run("invalid submission is rejected before any upload", func(t *testing.T) {
		storage := objstorage.NewMemoryStorage()
		exporter := NewExporter(storage, NewScreener(nil), log.NewDisabledLogger())

		sub := New("user-1", Listing{AppName: "Acme"})
		_, err := exporter.Export(context.Background(), sub)
		var valErr *ValidationError
		require.True(t, errors.As(err, &valErr))
		_, ok := storage.Object("submissions/" + sub.ID + "/listing.json")
		require.False(t, ok)
	})

	t.Run("broken image data fails the export", func(t *testing.T) {
		storage := objstorage.NewMemoryStorage()
		exporter := NewExporter(storage, nil, log.NewDisabledLogger())

		sub := New("user-1", makeReadyListing())
		sub.Images = []ImageAsset{{Name: "bad.png", ContentType: "image/png", B64Data: "%%%not-base64%%%"}}
		_, err := exporter.Export(context.Background(), sub)
		require.Error(t, err)
	})

	t.Run("transient upload failure is retried", func(t *testing.T) {
		storage := &flakyStorage{Storage: objstorage.NewMemoryStorage(), failures: 1}
		exporter := NewExporter(storage, NewScreener(nil), log.NewDisabledLogger())
		exporter.uploadBackoff = retry.NewConstantBackoffPolicy(time.Millisecond, 0)

		sub := New("user-1", makeReadyListing())
		_, err := exporter.Export(context.Background(), sub)
		require.NoError(t, err)
		require.Equal(t, 3, storage.uploads, "listing and manifest, one of them retried once")
	})

	t.Run("client error is not retried", func(t *testing.T) {
		storage := &flakyStorage{
			Storage:  objstorage.NewMemoryStorage(),
			failures: 1,
			err:      &objstorage.StorageError{StatusCode: 403, Message: "forbidden"},
		}
		exporter := NewExporter(storage, NewScreener(nil), log.NewDisabledLogger())
		exporter.uploadBackoff = retry.NewConstantBackoffPolicy(time.Millisecond, 0)

		sub := New("user-1", makeReadyListing())
		_, err := exporter.Export(context.Background(), sub)
		var storageErr *objstorage.StorageError
		require.True(t, errors.As(err, &storageErr))
		require.Equal(t, 1, storage.uploads)
	})
}

// flakyStorage fails the first `failures` uploads and then delegates.
type flakyStorage struct {
	objstorage.Storage
	failures int
	uploads  int
	err      error
}

func (s *flakyStorage) Upload(
	ctx context.Context, params objstorage.UploadParams, content io.Reader,
) (objstorage.StoredObject, error) {
	s.uploads++
	if s.failures > 0 {
		s.failures--
		if s.err != nil {
			return objstorage.StoredObject{}, s.err
		}
		return objstorage.StoredObject{}, &objstorage.StorageError{StatusCode: 503, Message: "unavailable"}
	}
	return s.Storage.Upload(ctx, params, content)
}
