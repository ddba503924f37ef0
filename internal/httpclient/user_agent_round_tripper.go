/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import "net/http"

// UserAgentRoundTripper sets the User-Agent header on outgoing requests that
// do not carry one yet.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(req)
	}

	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(req)
}
