/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
)

// AuthBearerRoundTripperError is returned when the token cannot be obtained.
type AuthBearerRoundTripperError struct {
	Inner error
}

func (e *AuthBearerRoundTripperError) Error() string {
	return fmt.Sprintf("auth bearer round trip: %s", e.Inner.Error())
}

// Unwrap returns the wrapped error.
func (e *AuthBearerRoundTripperError) Unwrap() error {
	return e.Inner
}

// AuthProvider yields the token used for bearer authorization.
type AuthProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// AuthProviderFunc adapts an ordinary function to the AuthProvider interface.
type AuthProviderFunc func(ctx context.Context) (string, error)

// GetToken implements the AuthProvider interface.
func (f AuthProviderFunc) GetToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// NewStaticAuthProvider returns an AuthProvider that always yields the given
// token. Suitable for API-key style authorization where the token never
// changes, which is how the GenAI, image generation and object storage
// providers authenticate.
func NewStaticAuthProvider(token string) AuthProvider {
	return AuthProviderFunc(func(ctx context.Context) (string, error) {
		return token, nil
	})
}

// AuthBearerRoundTripper sets the Authorization header on outgoing requests
// that do not carry one yet.
type AuthBearerRoundTripper struct {
	Delegate     http.RoundTripper
	AuthProvider AuthProvider
}

// NewAuthBearerRoundTripper creates a new AuthBearerRoundTripper.
func NewAuthBearerRoundTripper(delegate http.RoundTripper, authProvider AuthProvider) *AuthBearerRoundTripper {
	return &AuthBearerRoundTripper{Delegate: delegate, AuthProvider: authProvider}
}

// RoundTrip implements the http.RoundTripper interface.
func (rt *AuthBearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	token, err := rt.AuthProvider.GetToken(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close() // Per RoundTripper contract.
		}
		return nil, &AuthBearerRoundTripperError{Inner: err}
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	return rt.Delegate.RoundTrip(req)
}
