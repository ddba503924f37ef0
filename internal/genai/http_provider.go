/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const genaiRequestType = "genai"

// HTTPContentProvider implements the ContentProvider interface on top of the content generation service REST API.
// The fetched model list is cached in memory for the configured TTL since it changes rarely
// and the listing endpoint is polled by UI clients.
type HTTPContentProvider struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client

	modelsCacheTTL time.Duration
	modelsMu       sync.Mutex
	models         []Model
	modelsFetched  time.Time
}

var _ ContentProvider = (*HTTPContentProvider)(nil)

// NewHTTPContentProvider creates a new HTTPContentProvider.
func NewHTTPContentProvider(cfg *Config, opts httpclient.Opts) (*HTTPContentProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("content generation base URL is required")
	}
	if opts.Delegate == nil && cfg.APIKey != "" {
		opts.Delegate = httpclient.NewAuthBearerRoundTripper(
			http.DefaultTransport.(*http.Transport).Clone(), httpclient.NewStaticAuthProvider(cfg.APIKey))
	}
	if opts.RequestType == "" {
		opts.RequestType = genaiRequestType
	}
	transportCfg := cfg.Transport
	if transportCfg == nil {
		transportCfg = httpclient.NewConfig()
	}
	client, err := httpclient.NewWithOpts(transportCfg, opts)
	if err != nil {
		return nil, fmt.Errorf("create content generation http client: %w", err)
	}
	modelsCacheTTL := time.Duration(cfg.ModelsCacheTTL)
	if modelsCacheTTL == 0 {
		modelsCacheTTL = defaultModelsCacheTTL
	}
	return &HTTPContentProvider{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel:   cfg.DefaultModel,
		httpClient:     client,
		modelsCacheTTL: modelsCacheTTL,
	}, nil
}

// AnalyzeLandingPage extracts structured listing content from the page at the given URL.
func (p *HTTPContentProvider) AnalyzeLandingPage(ctx context.Context, req AnalysisRequest) (*LandingPageAnalysis, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("landing page URL is required")
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	reqBody, err := json.Marshal(struct {
		URL   string `json:"url"`
		Model string `json:"model,omitempty"`
	}{URL: req.URL, Model: model})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/analyses", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newProviderError(resp)
	}

	var analysis LandingPageAnalysis
	if err = json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if analysis.Model == "" {
		analysis.Model = model
	}
	return &analysis, nil
}

// ListModels returns content models available for analysis.
// The result is cached for the configured TTL.
func (p *HTTPContentProvider) ListModels(ctx context.Context) ([]Model, error) {
	p.modelsMu.Lock()
	defer p.modelsMu.Unlock()

	if p.models != nil && time.Since(p.modelsFetched) < p.modelsCacheTTL {
		return append([]Model(nil), p.models...), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newProviderError(resp)
	}

	var parsed struct {
		Data []Model `json:"data"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	p.models = parsed.Data
	p.modelsFetched = time.Now()
	return append([]Model(nil), p.models...), nil
}

func newProviderError(resp *http.Response) error {
	provErr := &ProviderError{StatusCode: resp.StatusCode}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error.Message != "" {
		provErr.Code = parsed.Error.Code
		provErr.Message = parsed.Error.Message
	} else {
		provErr.Message = strings.TrimSpace(string(respBody))
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		provErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return provErr
}
