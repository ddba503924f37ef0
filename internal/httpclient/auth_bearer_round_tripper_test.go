/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthBearerRoundTripper_RoundTrip(t *testing.T) {
	var gotAuthorization string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotAuthorization = r.Header.Get("Authorization")
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Run("token from provider is set", func(t *testing.T) {
		rt := NewAuthBearerRoundTripper(http.DefaultTransport, NewStaticAuthProvider("secret-token"))
		resp, err := (&http.Client{Transport: rt}).Get(srv.URL)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, "Bearer secret-token", gotAuthorization)
	})

	t.Run("existing Authorization header is preserved", func(t *testing.T) {
		rt := NewAuthBearerRoundTripper(http.DefaultTransport, NewStaticAuthProvider("secret-token"))
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer other-token")
		resp, err := (&http.Client{Transport: rt}).Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, "Bearer other-token", gotAuthorization)
	})

	t.Run("provider error is wrapped", func(t *testing.T) {
		providerErr := errors.New("token endpoint unavailable")
		rt := NewAuthBearerRoundTripper(http.DefaultTransport, AuthProviderFunc(
			func(ctx context.Context) (string, error) {
				return "", providerErr
			}))
		_, err := (&http.Client{Transport: rt}).Get(srv.URL) //nolint:bodyclose
		var authErr *AuthBearerRoundTripperError
		require.ErrorAs(t, err, &authErr)
		require.ErrorIs(t, authErr, providerErr)
	})
}
