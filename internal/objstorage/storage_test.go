/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package objstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

func TestConfig(t *testing.T) {
	yamlData := []byte(`
objstorage:
  baseUrl: https://storage.example.com
  apiKey: secret-key
  transport:
    timeout: 20s
    retries:
      enabled: true
      maxAttempts: 2
`)

	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewReader(yamlData), config.DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, "https://storage.example.com", cfg.BaseURL)
	require.Equal(t, "secret-key", cfg.APIKey)
	require.Equal(t, 20*time.Second, cfg.Transport.Timeout)
	require.True(t, cfg.Transport.Retries.Enabled)
	require.Equal(t, 2, cfg.Transport.Retries.MaxAttempts)
}

func TestConfigErrors(t *testing.T) {
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(
		bytes.NewReader([]byte(`objstorage: {apiKey: secret-key}`)), config.DataTypeYAML, cfg)
	require.ErrorContains(t, err, "object storage base URL cannot be empty")
}

func TestHTTPStorage_EnsureFolder(t *testing.T) {
	tests := []struct {
		Name       string
		StatusCode int
		WantErr    bool
	}{
		{Name: "created", StatusCode: http.StatusCreated, WantErr: false},
		{Name: "already exists", StatusCode: http.StatusConflict, WantErr: false},
		{Name: "server error", StatusCode: http.StatusInternalServerError, WantErr: true},
	}
	for i := range tests {
		tt := tests[i]
		t.Run(tt.Name, func(t *testing.T) {
			var gotAuth, gotPath, gotName string
			srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				var reqBody struct {
					Name string `json:"name"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
				gotName = reqBody.Name
				rw.WriteHeader(tt.StatusCode)
			}))
			defer srv.Close()

			storage, err := NewHTTPStorage(&Config{BaseURL: srv.URL, APIKey: "secret-key"}, httpclient.Opts{})
			require.NoError(t, err)

			err = storage.EnsureFolder(context.Background(), "submissions")
			if tt.WantErr {
				var storageErr *StorageError
				require.ErrorAs(t, err, &storageErr)
				require.Equal(t, tt.StatusCode, storageErr.StatusCode)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, "Bearer secret-key", gotAuth)
			require.Equal(t, "/v1/folders", gotPath)
			require.Equal(t, "submissions", gotName)
		})
	}
}

func TestHTTPStorage_Upload(t *testing.T) {
	var gotMethod, gotPath, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		gotContentType = r.Header.Get("Content-Type")
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(r.Body)
		require.NoError(t, err)
		gotBody = buf.String()
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(rw).Encode(map[string]interface{}{
			"key":  "submissions/sub-1/manifest.json",
			"url":  "https://cdn.example.com/submissions/sub-1/manifest.json",
			"size": 42,
		})
	}))
	defer srv.Close()

	storage, err := NewHTTPStorage(&Config{BaseURL: srv.URL}, httpclient.Opts{})
	require.NoError(t, err)

	obj, err := storage.Upload(context.Background(), UploadParams{
		Key:         "submissions/sub 1/manifest.json",
		ContentType: "application/json",
	}, strings.NewReader(`{"appName":"Shopgenfy"}`))
	require.NoError(t, err)

	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/v1/objects/submissions/sub%201/manifest.json", gotPath,
		"key segments should be path-escaped")
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, `{"appName":"Shopgenfy"}`, gotBody)
	require.Equal(t, "submissions/sub-1/manifest.json", obj.Key)
	require.Equal(t, "https://cdn.example.com/submissions/sub-1/manifest.json", obj.URL)
	require.Equal(t, int64(42), obj.Size)
}

func TestHTTPStorage_ObjectURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/objects/submissions/sub-1/manifest.json/url", r.URL.Path)
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]string{"url": "https://cdn.example.com/x"})
	}))
	defer srv.Close()

	storage, err := NewHTTPStorage(&Config{BaseURL: srv.URL}, httpclient.Opts{})
	require.NoError(t, err)

	objURL, err := storage.ObjectURL(context.Background(), "submissions/sub-1/manifest.json")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/x", objURL)
}

func TestMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.EnsureFolder(ctx, "submissions"))

	obj, err := storage.Upload(ctx, UploadParams{Key: "submissions/sub-1/manifest.json"}, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "memory://submissions/sub-1/manifest.json", obj.URL)
	require.Equal(t, int64(5), obj.Size)

	objURL, err := storage.ObjectURL(ctx, "submissions/sub-1/manifest.json")
	require.NoError(t, err)
	require.Equal(t, obj.URL, objURL)

	data, ok := storage.Object("submissions/sub-1/manifest.json")
	require.True(t, ok)
	require.Equal(t, "hello", string(data))

	_, err = storage.ObjectURL(ctx, "missing")
	require.ErrorContains(t, err, "not found")
}
