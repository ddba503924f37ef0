/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

func TestHTTPImageProviderGenerate(t *testing.T) {
	t.Run("successful generation", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/images", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			var reqBody struct {
				Prompt string `json:"prompt"`
				Size   string `json:"size"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
			require.Equal(t, "1024x1024", reqBody.Size)
			_, _ = rw.Write([]byte(`{"url":"https://images.example.com/1.png","contentType":"image/png"}`))
		}))
		defer server.Close()

		provider, err := NewHTTPImageProvider(&Config{BaseURL: server.URL, APIKey: "img-key"}, httpclient.Opts{})
		require.NoError(t, err)

		image, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "app icon", Size: "1024x1024"})
		require.NoError(t, err)
		require.Equal(t, "Bearer img-key", gotAuth)
		require.Equal(t, "app icon", image.Prompt)
		require.Equal(t, "https://images.example.com/1.png", image.URL)
	})

	t.Run("provider error is typed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Retry-After", "30")
			rw.WriteHeader(http.StatusTooManyRequests)
			_, _ = rw.Write([]byte(`{"error":{"message":"image quota exceeded"}}`))
		}))
		defer server.Close()

		provider, err := NewHTTPImageProvider(&Config{BaseURL: server.URL}, httpclient.Opts{})
		require.NoError(t, err)

		_, err = provider.Generate(context.Background(), GenerateRequest{Prompt: "app icon"})
		var provErr *ProviderError
		require.True(t, errors.As(err, &provErr))
		require.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
		require.Equal(t, "image quota exceeded", provErr.Message)
		require.Equal(t, time.Second*30, provErr.RetryAfter)
		require.True(t, provErr.IsRetryable())
	})

	t.Run("empty prompt is rejected locally", func(t *testing.T) {
		provider, err := NewHTTPImageProvider(&Config{BaseURL: "http://127.0.0.1:1"}, httpclient.Opts{})
		require.NoError(t, err)
		_, err = provider.Generate(context.Background(), GenerateRequest{})
		require.Error(t, err)
	})

	t.Run("pacing cancellation is honored", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			_, _ = rw.Write([]byte(`{"url":"https://images.example.com/1.png","contentType":"image/png"}`))
		}))
		defer server.Close()

		provider, err := NewHTTPImageProvider(&Config{
			BaseURL:      server.URL,
			ProviderRate: config.RateValue{Count: 1, Duration: time.Hour},
		}, httpclient.Opts{})
		require.NoError(t, err)

		// The first call spends the only slot of the pacing window.
		_, err = provider.Generate(context.Background(), GenerateRequest{Prompt: "one"})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*200)
		defer cancel()
		_, err = provider.Generate(ctx, GenerateRequest{Prompt: "two"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
