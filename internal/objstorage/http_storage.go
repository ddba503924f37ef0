/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package objstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const storageRequestType = "objstorage"

// HTTPStorage implements the Storage interface on top of the object storage service REST API.
// All requests go through the configured round-tripper chain with bearer authorization innermost
// so that every retry attempt is authorized.
type HTTPStorage struct {
	baseURL    string
	httpClient *http.Client
}

var _ Storage = (*HTTPStorage)(nil)

// NewHTTPStorage creates a new HTTPStorage.
func NewHTTPStorage(cfg *Config, opts httpclient.Opts) (*HTTPStorage, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("object storage base URL is required")
	}
	if opts.Delegate == nil && cfg.APIKey != "" {
		opts.Delegate = httpclient.NewAuthBearerRoundTripper(
			http.DefaultTransport.(*http.Transport).Clone(), httpclient.NewStaticAuthProvider(cfg.APIKey))
	}
	if opts.RequestType == "" {
		opts.RequestType = storageRequestType
	}
	transportCfg := cfg.Transport
	if transportCfg == nil {
		transportCfg = httpclient.NewConfig()
	}
	client, err := httpclient.NewWithOpts(transportCfg, opts)
	if err != nil {
		return nil, fmt.Errorf("create object storage http client: %w", err)
	}
	return &HTTPStorage{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
	}, nil
}

// EnsureFolder makes sure the folder with the given name exists.
// The storage service responds with 409 when the folder already exists, which is not an error here.
func (s *HTTPStorage) EnsureFolder(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("folder name is required")
	}

	reqBody, err := json.Marshal(struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/folders", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newStorageError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Upload stores the object content under the given key.
func (s *HTTPStorage) Upload(ctx context.Context, params UploadParams, content io.Reader) (StoredObject, error) {
	if params.Key == "" {
		return StoredObject{}, fmt.Errorf("object key is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectEndpoint(params.Key), content)
	if err != nil {
		return StoredObject{}, fmt.Errorf("build request: %w", err)
	}
	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return StoredObject{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return StoredObject{}, newStorageError(resp)
	}

	var parsed struct {
		Key  string `json:"key"`
		URL  string `json:"url"`
		Size int64  `json:"size"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return StoredObject{}, fmt.Errorf("decode response: %w", err)
	}
	obj := StoredObject{Key: parsed.Key, URL: parsed.URL, Size: parsed.Size}
	if obj.Key == "" {
		obj.Key = params.Key
	}
	return obj, nil
}

// ObjectURL returns a URL by which the object with the given key can be downloaded.
func (s *HTTPStorage) ObjectURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectEndpoint(key)+"/url", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", newStorageError(resp)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parsed.URL, nil
}

func (s *HTTPStorage) objectEndpoint(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s.baseURL + "/v1/objects/" + strings.Join(segments, "/")
}

func newStorageError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StorageError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
