/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const imageGenRequestType = "imagegen"

// pacePollInterval is how often a paced call re-checks the provider-side quota.
const pacePollInterval = time.Millisecond * 100

// HTTPImageProvider implements the ImageProvider interface on top of the image generation service REST API.
// Outbound calls are paced to the provider-side quota so that workers don't burn
// the shared budget into a wall of 429 responses.
type HTTPImageProvider struct {
	baseURL    string
	httpClient *http.Client
	pace       *slidingwindow.Limiter
}

var _ ImageProvider = (*HTTPImageProvider)(nil)

// NewHTTPImageProvider creates a new HTTPImageProvider.
func NewHTTPImageProvider(cfg *Config, opts httpclient.Opts) (*HTTPImageProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("image generation base URL is required")
	}
	if opts.Delegate == nil && cfg.APIKey != "" {
		opts.Delegate = httpclient.NewAuthBearerRoundTripper(
			http.DefaultTransport.(*http.Transport).Clone(), httpclient.NewStaticAuthProvider(cfg.APIKey))
	}
	if opts.RequestType == "" {
		opts.RequestType = imageGenRequestType
	}
	transportCfg := cfg.Transport
	if transportCfg == nil {
		transportCfg = httpclient.NewConfig()
	}
	client, err := httpclient.NewWithOpts(transportCfg, opts)
	if err != nil {
		return nil, fmt.Errorf("create image generation http client: %w", err)
	}

	var pace *slidingwindow.Limiter
	if cfg.ProviderRate.Count > 0 {
		pace, _ = slidingwindow.NewLimiter(
			cfg.ProviderRate.Duration, int64(cfg.ProviderRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
				return slidingwindow.NewLocalWindow()
			})
	}

	return &HTTPImageProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		pace:       pace,
	}, nil
}

// Generate produces one image for the given prompt.
func (p *HTTPImageProvider) Generate(ctx context.Context, req GenerateRequest) (*GeneratedImage, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if err := p.waitForPace(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(struct {
		Prompt string `json:"prompt"`
		Size   string `json:"size,omitempty"`
	}{Prompt: req.Prompt, Size: req.Size})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/images", bytes.NewReader(reqBody))
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

	var image GeneratedImage
	if err = json.NewDecoder(resp.Body).Decode(&image); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	image.Prompt = req.Prompt
	return &image, nil
}

// waitForPace blocks until the provider-side quota admits one more call or ctx is done.
func (p *HTTPImageProvider) waitForPace(ctx context.Context) error {
	if p.pace == nil {
		return nil
	}
	for !p.pace.Allow() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pacePollInterval):
		}
	}
	return nil
}

func newProviderError(resp *http.Response) error {
	provErr := &ProviderError{StatusCode: resp.StatusCode}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error.Message != "" {
		provErr.Message = parsed.Error.Message
	} else {
		provErr.Message = strings.TrimSpace(string(respBody))
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		provErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return provErr
}
