/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// RequestBodyTooLargeError is returned by reads of a request body wrapped with
// SetRequestMaxBodySize once the limit is exceeded.
type RequestBodyTooLargeError struct {
	MaxSizeBytes uint64
	Err          error
}

func (e *RequestBodyTooLargeError) Error() string {
	return e.Err.Error()
}

type maxBytesReader struct {
	io.ReadCloser
	limit uint64
}

func (r *maxBytesReader) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)

	// http.maxBytesReader reports the overflow only via the error text,
	// see https://github.com/golang/go/issues/30715.
	if err != nil && err.Error() == "http: request body too large" {
		err = &RequestBodyTooLargeError{r.limit, err}
	}

	return n, err
}

// SetRequestMaxBodySize caps the request body at maxSizeBytes. Reading past
// the cap yields a RequestBodyTooLargeError.
func SetRequestMaxBodySize(w http.ResponseWriter, r *http.Request, maxSizeBytes uint64) {
	r.Body = &maxBytesReader{ReadCloser: http.MaxBytesReader(w, r.Body, int64(maxSizeBytes)), limit: maxSizeBytes}
}

// MalformedRequestError describes a request the client got wrong, together
// with the status code the response should carry. Message is safe to show to
// the client as is.
type MalformedRequestError struct {
	HTTPStatusCode int
	Message        string
}

func (e *MalformedRequestError) Error() string {
	return e.Message
}

// NewTooLargeMalformedRequestError creates a MalformedRequestError for a request body over the limit.
func NewTooLargeMalformedRequestError(maxSizeBytes uint64) *MalformedRequestError {
	return &MalformedRequestError{
		http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Request body must not be larger than %s.", bytefmt.ByteSize(maxSizeBytes)),
	}
}

// DecodeRequestJSON reads the request body and decodes it as JSON into dst.
// Decoding problems caused by the client come back as MalformedRequestError.
func DecodeRequestJSON(r *http.Request, dst interface{}) error {
	return DecodeRequestJSONStrict(r, dst, false)
}

// DecodeRequestJSONStrict is DecodeRequestJSON that can additionally reject
// fields the destination struct does not declare.
func DecodeRequestJSONStrict(r *http.Request, dst interface{}, disallowUnknownFields bool) error {
	if err := checkJSONContentType(r); err != nil {
		return err
	}

	decoder := json.NewDecoder(r.Body)
	if disallowUnknownFields {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&dst); err != nil {
		return malformedRequestError(err)
	}

	// A json.Decoder happily reads a stream of objects, a request must hold one.
	if decoder.More() {
		return &MalformedRequestError{
			http.StatusBadRequest,
			"Request body must only contain a single JSON object.",
		}
	}

	return nil
}

func checkJSONContentType(r *http.Request) error {
	reqContentType := r.Header.Get("Content-Type")
	if reqContentType == "" {
		return nil
	}
	contentType, _, err := mime.ParseMediaType(reqContentType)
	if err != nil {
		return &MalformedRequestError{
			http.StatusUnsupportedMediaType,
			fmt.Sprintf("failed to parse Content-Type header for request: %s", err),
		}
	}
	if contentType != ContentTypeAppJSON {
		return &MalformedRequestError{
			http.StatusUnsupportedMediaType,
			fmt.Sprintf("Content-Type %q is not supported.", contentType),
		}
	}
	return nil
}

func malformedRequestError(err error) error {
	var syntaxErr *json.SyntaxError
	var unmarshalTypeErr *json.UnmarshalTypeError
	var tooLargeErr *RequestBodyTooLargeError

	switch {
	case errors.Is(err, io.EOF):
		return &MalformedRequestError{
			http.StatusBadRequest,
			"Request body must not be empty.",
		}

	case errors.Is(err, io.ErrUnexpectedEOF):
		return &MalformedRequestError{
			http.StatusBadRequest,
			"Request body contains badly-formed JSON.",
		}

	case errors.As(err, &syntaxErr):
		return &MalformedRequestError{
			http.StatusBadRequest,
			fmt.Sprintf("Request body contains badly-formed JSON (at position %d).", syntaxErr.Offset),
		}

	case errors.As(err, &unmarshalTypeErr):
		if unmarshalTypeErr.Field != "" {
			return &MalformedRequestError{
				http.StatusBadRequest,
				fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d).",
					unmarshalTypeErr.Field, unmarshalTypeErr.Offset),
			}
		}
		return &MalformedRequestError{
			http.StatusBadRequest,
			fmt.Sprintf("Request body contains an invalid value of type %q for the field of type %s.",
				unmarshalTypeErr.Value, unmarshalTypeErr.Type.String()),
		}

	case errors.As(err, &tooLargeErr):
		return NewTooLargeMalformedRequestError(tooLargeErr.MaxSizeBytes)

	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return &MalformedRequestError{
			http.StatusBadRequest,
			"Payload does not match the scheme",
		}
	}
	return err
}
