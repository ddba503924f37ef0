/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides a separate HTTP server for profiling with pprof.
package profserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/service"
)

// ProfServer is a separate HTTP server exposing pprof under /debug.
// It implements the service.Unit interface.
type ProfServer struct {
	URL        string
	HTTPServer *http.Server
	Logger     log.FieldLogger

	serveDone chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new profiling HTTP server.
func New(cfg *Config, logger log.FieldLogger) *ProfServer {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{RequestStart: true}),
	)
	router.Mount("/debug", chimiddleware.Profiler())

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: time.Second * 5,
	}

	return &ProfServer{
		URL:        "http://" + httpServer.Addr,
		HTTPServer: httpServer,
		Logger:     logger,
		serveDone:  make(chan struct{}),
	}
}

// Start serves profiling requests until the server stops. It blocks and is
// supposed to be called in a separate goroutine. Fatal errors are sent to the
// fatalError channel.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.serveDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))

	logger.Info("starting profiling HTTP server...")
	err := s.HTTPServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("profiling HTTP server closed")
		return
	}
	if err != nil {
		logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop closes the profiling HTTP server. Profiling connections are not worth
// a graceful drain, so the gracefully flag is ignored.
func (s *ProfServer) Stop(gracefully bool) error {
	s.Logger.Info("closing profiling HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-s.serveDone
	return nil
}
