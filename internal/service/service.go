/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service provides a simple lifecycle framework for long-running programs.
// A program is composed of units (HTTP server, background workers) that are started
// together and stopped gracefully on OS signals or fatal errors.
package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// Opts holds optional Service parameters.
type Opts struct {
	ShutdownSignals []os.Signal
}

// Service runs a Unit, registers its metrics and stops it gracefully on an OS
// signal, a context cancellation or a fatal error from the unit itself.
type Service struct {
	Unit    Unit
	Signals chan os.Signal
	Logger  log.FieldLogger
	Opts    Opts
}

// New creates a Service stopping on SIGINT and SIGTERM.
func New(logger log.FieldLogger, unit Unit) *Service {
	return NewWithOpts(logger, unit, Opts{
		ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	})
}

// NewWithOpts is a configurable version of New.
func NewWithOpts(logger log.FieldLogger, unit Unit, opts Opts) *Service {
	return &Service{
		Signals: make(chan os.Signal, 1),
		Unit:    unit,
		Logger:  logger,
		Opts:    opts,
	}
}

// Start wraps StartContext using the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext starts the unit in a separate goroutine and blocks until a
// fatal error occurs, the context is canceled or a shutdown signal arrives.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	fatalError := make(chan error, 1)
	go s.Unit.Start(fatalError)

	signal.Notify(s.Signals, s.Opts.ShutdownSignals...)

	select {
	case <-ctx.Done():
		s.Logger.Info("context canceled, stopping service")
		return s.stopGracefully()
	case err := <-fatalError:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
		return s.stopGracefully()
	}
}

func (s *Service) stopGracefully() error {
	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	return nil
}
