/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
)

// RecoveryDefaultStackSize is how many bytes of the stack trace are logged on panic.
const RecoveryDefaultStackSize = 8192

// RecoveryOpts tunes the Recovery middleware.
type RecoveryOpts struct {
	StackSize int
}

type recoveryHandler struct {
	next        http.Handler
	errorDomain string
	opts        RecoveryOpts
}

// Recovery is a middleware turning a handler panic into a logged stack trace
// and a 500 response with a well-formed error body.
func Recovery(errDomain string) func(next http.Handler) http.Handler {
	return RecoveryWithOpts(errDomain, RecoveryOpts{StackSize: RecoveryDefaultStackSize})
}

// RecoveryWithOpts is a configurable version of Recovery.
func RecoveryWithOpts(errDomain string, opts RecoveryOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &recoveryHandler{next: next, errorDomain: errDomain, opts: opts}
	}
}

func (h *recoveryHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			h.handlePanic(rw, r, p)
		}
	}()

	h.next.ServeHTTP(rw, r)
}

func (h *recoveryHandler) handlePanic(rw http.ResponseWriter, r *http.Request, p interface{}) {
	logger := GetLoggerFromContext(r.Context())

	if p == http.ErrAbortHandler {
		// http.ErrAbortHandler is a sentinel panic for aborting a handler.
		// http.Server doesn't log a stack trace for it, and neither should we.
		// Propagating the panic further is a common practice (chi and echo do the same).
		if logger != nil {
			logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
		}
		panic(p)
	}

	if logger != nil {
		var logFields []log.Field
		if h.opts.StackSize != 0 {
			stack := make([]byte, h.opts.StackSize)
			stack = stack[:runtime.Stack(stack, false)]
			logFields = append(logFields, log.Bytes("stack", stack))
		}
		logger.Error(fmt.Sprintf("Panic: %+v", p), logFields...)
	}

	restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewInternalError(h.errorDomain), logger)
}
