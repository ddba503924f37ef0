/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerUnitStopTimeoutExceeded is returned by WorkerUnit.Stop when the
// worker does not finish within the configured graceful stop timeout.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnit presents a Worker as a Unit so it can run next to the HTTP server
// in one CompositeUnit.
type WorkerUnit struct {
	worker            Worker
	runCtx            context.Context
	cancelRun         context.CancelFunc
	runDone           chan struct{}
	stopTimeout       time.Duration
	metricsRegisterer MetricsRegisterer
}

// WorkerUnitOpts contains optional parameters for constructing WorkerUnit.
type WorkerUnitOpts struct {
	MetricsRegisterer   MetricsRegisterer
	GracefulStopTimeout time.Duration
}

// NewWorkerUnit creates a new WorkerUnit with default options.
func NewWorkerUnit(worker Worker) *WorkerUnit {
	return NewWorkerUnitWithOpts(worker, WorkerUnitOpts{})
}

// NewWorkerUnitWithOpts creates a new WorkerUnit with the given options.
func NewWorkerUnitWithOpts(worker Worker, opts WorkerUnitOpts) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerUnit{
		worker:            worker,
		runCtx:            ctx,
		cancelRun:         cancel,
		runDone:           make(chan struct{}),
		stopTimeout:       opts.GracefulStopTimeout,
		metricsRegisterer: opts.MetricsRegisterer,
	}
}

// Start runs the underlying Worker and blocks until it returns.
func (u *WorkerUnit) Start(fatalError chan<- error) {
	defer close(u.runDone)
	if err := u.worker.Run(u.runCtx); err != nil {
		fatalError <- err
	}
}

// Stop cancels the worker's context. With gracefully set it additionally waits
// for the worker to finish, up to GracefulStopTimeout when one is configured.
func (u *WorkerUnit) Stop(gracefully bool) error {
	u.cancelRun()
	if !gracefully {
		return nil
	}
	if u.stopTimeout == 0 {
		<-u.runDone
		return nil
	}
	select {
	case <-u.runDone:
		return nil
	case <-time.After(u.stopTimeout):
		return ErrWorkerUnitStopTimeoutExceeded
	}
}

// MustRegisterMetrics registers the underlying Worker's metrics.
func (u *WorkerUnit) MustRegisterMetrics() {
	if u.metricsRegisterer != nil {
		u.metricsRegisterer.MustRegisterMetrics()
	}
}

// UnregisterMetrics unregisters the underlying Worker's metrics.
func (u *WorkerUnit) UnregisterMetrics() {
	if u.metricsRegisterer != nil {
		u.metricsRegisterer.UnregisterMetrics()
	}
}
