/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"

	"github.com/rs/xid"
)

const (
	headerRequestID         = "X-Request-ID"
	headerInternalRequestID = "X-Int-Request-ID"
)

// RequestIDOpts represents an options for RequestID middleware.
type RequestIDOpts struct {
	GenerateID         func() string
	GenerateInternalID func() string
}

// RequestID is a middleware that trusts the caller-supplied X-Request-ID header
// (generating a fresh id when it's absent) and always generates a second,
// internal id that callers cannot influence. Both ids are stored in the request
// context and echoed back in the X-Request-ID and X-Int-Request-ID response headers.
// Ids are xid values: cheap to generate and sortable by creation time.
func RequestID() func(next http.Handler) http.Handler {
	genID := func() string { return xid.New().String() }
	return RequestIDWithOpts(RequestIDOpts{GenerateID: genID, GenerateInternalID: genID})
}

// RequestIDWithOpts is a more configurable version of RequestID middleware.
func RequestIDWithOpts(opts RequestIDOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(headerRequestID)
			if requestID == "" {
				requestID = opts.GenerateID()
			}
			internalRequestID := opts.GenerateInternalID()

			ctx := NewContextWithRequestID(r.Context(), requestID)
			ctx = NewContextWithInternalRequestID(ctx, internalRequestID)

			rw.Header().Set(headerRequestID, requestID)
			rw.Header().Set(headerInternalRequestID, internalRequestID)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}
