/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// makeRequestBodyRewindable prepares a request body so that every retry
// attempt can read it from the start, and returns the rewind function.
//
// The cheapest working option is chosen: GetBody when the caller supplied one,
// seeking when the body is an io.ReadSeeker, and buffering the whole body in
// memory as a last resort. The buffering path is unfit for large uploads such
// as listing screenshots, callers pushing those should set req.GetBody or pass
// a seekable body.
func makeRequestBodyRewindable(req *http.Request) (func(*http.Request) error, error) {
	if req.GetBody != nil {
		// Rebuild the body for the first attempt too, the original reader may
		// already be partially consumed.
		initialBody, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("get body before doing first request: %w", err)
		}
		req.Body = initialBody
		return func(r *http.Request) error {
			newBody, newBodyErr := r.GetBody()
			if newBodyErr != nil {
				return fmt.Errorf("get body for retry: %w", newBodyErr)
			}
			r.Body = newBody
			return nil
		}, nil
	}

	if seeker, ok := req.Body.(io.ReadSeeker); ok {
		startOffset, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("seek request body before doing first request: %w", err)
		}
		req.Body = io.NopCloser(req.Body)
		return func(r *http.Request) error {
			if _, seekErr := seeker.Seek(startOffset, io.SeekStart); seekErr != nil {
				return fmt.Errorf(
					"seek request body (offset=%d, whence=%d) for retry: %w", startOffset, io.SeekStart, seekErr)
			}
			return nil
		}, nil
	}

	buffered, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read all request body before doing first request: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(buffered))
	return func(r *http.Request) error {
		r.Body = io.NopCloser(bytes.NewReader(buffered))
		return nil
	}, nil
}

// drainResponseBody discards the rest of the response body so the underlying
// connection can be reused for the next attempt.
func drainResponseBody(resp *http.Response, logger log.FieldLogger) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close previous response body between retry attempts", log.Error(closeErr))
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		logger.Error("failed to discard previous response body between retry attempts", log.Error(err))
	}
}
