/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	opts := RequestIDOpts{
		GenerateID:         func() string { return "gen-external-id" },
		GenerateInternalID: func() string { return "gen-internal-id" },
	}

	serve := func(mw func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, *http.Request) {
		var seen *http.Request
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { seen = r })
		resp := httptest.NewRecorder()
		mw(next).ServeHTTP(resp, req)
		require.NotNil(t, seen, "next handler was not called")
		return resp, seen
	}

	t.Run("external request id from the header is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(headerRequestID, "caller-supplied-id")
		req.Header.Set(headerInternalRequestID, "caller-supplied-id")

		resp, seen := serve(RequestIDWithOpts(opts), req)
		require.Equal(t, "caller-supplied-id", GetRequestIDFromContext(seen.Context()))
		require.Equal(t, "caller-supplied-id", resp.Header().Get(headerRequestID))

		// The internal id is always self-generated, the caller's header is ignored.
		require.Equal(t, "gen-internal-id", GetInternalRequestIDFromContext(seen.Context()))
		require.Equal(t, "gen-internal-id", resp.Header().Get(headerInternalRequestID))
	})

	t.Run("missing external request id is generated", func(t *testing.T) {
		resp, seen := serve(RequestIDWithOpts(opts), httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, "gen-external-id", GetRequestIDFromContext(seen.Context()))
		require.Equal(t, "gen-external-id", resp.Header().Get(headerRequestID))
		require.Equal(t, "gen-internal-id", GetInternalRequestIDFromContext(seen.Context()))
	})

	t.Run("default generator produces xid values", func(t *testing.T) {
		resp, seen := serve(RequestID(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, GetRequestIDFromContext(seen.Context()))
		require.NotEmpty(t, GetInternalRequestIDFromContext(seen.Context()))
		require.NotEmpty(t, resp.Header().Get(headerRequestID))
		require.NotEmpty(t, resp.Header().Get(headerInternalRequestID))
	})
}
