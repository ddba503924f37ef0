/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"
)

// WrapResponseWriter is a proxy around an http.ResponseWriter that allows you to hook into
// various parts of the response process.
type WrapResponseWriter interface {
	http.ResponseWriter

	// Status returns the HTTP status of the request, or 0 if one has not been sent yet.
	Status() int

	// BytesWritten returns the total number of bytes sent to the client.
	BytesWritten() int

	// ElapsedTime returns the total time spent writing the response status and body to the client.
	ElapsedTime() time.Duration

	// Unwrap returns the original proxied target.
	Unwrap() http.ResponseWriter
}

// NewWrapResponseWriter wraps an http.ResponseWriter, returning a proxy that implements WrapResponseWriter.
// Flushing and hijacking are passed through to the underlying response writer when it supports them.
func NewWrapResponseWriter(rw http.ResponseWriter, protoMajor int) WrapResponseWriter {
	bw := basicWriter{ResponseWriter: rw}

	_, isFlusher := rw.(http.Flusher)
	if protoMajor < 2 {
		if _, isHijacker := rw.(http.Hijacker); isHijacker {
			if isFlusher {
				return &flushHijackWriter{bw}
			}
			return &hijackWriter{bw}
		}
	}
	if isFlusher {
		return &flushWriter{bw}
	}
	return &bw
}

type basicWriter struct {
	http.ResponseWriter
	wroteHeader bool
	code        int
	bytes       int
	elapsed     time.Duration
}

func (b *basicWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.code = code
	b.wroteHeader = true
	start := time.Now()
	b.ResponseWriter.WriteHeader(code)
	b.elapsed += time.Since(start)
}

func (b *basicWriter) Write(buf []byte) (int, error) {
	b.maybeWriteHeader()
	start := time.Now()
	n, err := b.ResponseWriter.Write(buf)
	b.elapsed += time.Since(start)
	b.bytes += n
	return n, err
}

func (b *basicWriter) maybeWriteHeader() {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
}

func (b *basicWriter) Status() int {
	return b.code
}

func (b *basicWriter) BytesWritten() int {
	return b.bytes
}

func (b *basicWriter) ElapsedTime() time.Duration {
	return b.elapsed
}

func (b *basicWriter) Unwrap() http.ResponseWriter {
	return b.ResponseWriter
}

type flushWriter struct {
	basicWriter
}

func (f *flushWriter) Flush() {
	f.maybeWriteHeader()
	f.basicWriter.ResponseWriter.(http.Flusher).Flush()
}

var _ http.Flusher = &flushWriter{}

type hijackWriter struct {
	basicWriter
}

func (h *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.basicWriter.ResponseWriter.(http.Hijacker).Hijack()
}

var _ http.Hijacker = &hijackWriter{}

type flushHijackWriter struct {
	basicWriter
}

func (f *flushHijackWriter) Flush() {
	f.maybeWriteHeader()
	f.basicWriter.ResponseWriter.(http.Flusher).Flush()
}

func (f *flushHijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return f.basicWriter.ResponseWriter.(http.Hijacker).Hijack()
}

var _ http.Flusher = &flushHijackWriter{}
var _ http.Hijacker = &flushHijackWriter{}
