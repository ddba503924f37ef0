/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"net/http"
	"strings"
	"unicode"
)

// Error is the error payload of an error response. Domain tells which part of
// the service produced the error (e.g. ListingService or ImageGenService),
// Code is a stable machine-readable identifier, Message is for humans.
type Error struct {
	Domain  string                 `json:"domain"`
	Code    string                 `json:"code"`
	Message string                 `json:"message,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
	Debug   map[string]interface{} `json:"debug,omitempty"`
}

// Common error codes. Declared as vars so a service can override them.
var (
	ErrCodeInternal         = "internalError"
	ErrCodeBadRequest       = "badRequest"
	ErrCodeNotFound         = "notFound"
	ErrCodeMethodNotAllowed = "methodNotAllowed"
)

// Common error messages. Declared as vars so a service can override them.
var (
	ErrMessageInternal         = "Internal error."
	ErrMessageNotFound         = "Not found."
	ErrMessageMethodNotAllowed = "Method not allowed."
)

// NewError creates an Error with the given domain, code and message.
func NewError(domain, code, message string) *Error {
	return &Error{Domain: domain, Code: code, Message: message}
}

// NewInternalError creates a generic internal Error for the given domain.
func NewInternalError(domain string) *Error {
	return NewError(domain, ErrCodeInternal, ErrMessageInternal)
}

// AddContext attaches a client-visible context value to the error.
func (e *Error) AddContext(field string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[field] = value
	return e
}

// AddDebug attaches a debug value to the error.
func (e *Error) AddDebug(field string, value interface{}) *Error {
	if e.Debug == nil {
		e.Debug = make(map[string]interface{})
	}
	e.Debug[field] = value
	return e
}

// httpCode2ErrorCode turns an HTTP status into a lowerCamelCase error code,
// e.g. 405 becomes methodNotAllowed.
func httpCode2ErrorCode(httpCode int) string {
	if httpCode == http.StatusInternalServerError {
		return ErrCodeInternal
	}
	var b strings.Builder
	capitalizeNext := false
	for _, char := range http.StatusText(httpCode) {
		if unicode.IsSpace(char) {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			b.WriteRune(unicode.ToTitle(char))
			capitalizeNext = false
			continue
		}
		b.WriteRune(unicode.ToLower(char))
	}
	return b.String()
}
