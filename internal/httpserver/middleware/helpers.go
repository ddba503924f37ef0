/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
)

// RoutePatternGetterFunc is a function for getting route pattern from the request. Used in multiple middlewares.
// Usually it depends on the router that is used in HTTP server, see httpserver.GetChiRoutePattern for the chi one.
type RoutePatternGetterFunc func(r *http.Request) string

// WrapResponseWriterIfNeeded wraps an http.ResponseWriter (if it is not already wrapped), returning a proxy
// that allows you to hook into various parts of the response process.
func WrapResponseWriterIfNeeded(rw http.ResponseWriter, protoMajor int) WrapResponseWriter {
	if wrw, ok := rw.(WrapResponseWriter); ok {
		return wrw
	}
	return NewWrapResponseWriter(rw, protoMajor)
}
