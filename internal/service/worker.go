/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// ErrPeriodicWorkerStop may be returned by a worker to break the PeriodicWorker loop without an error.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker repeatedly runs the underlying worker, e.g. the image job reaper,
// sleeping between invocations. An error returned by an invocation is logged,
// it does not break the loop.
type PeriodicWorker struct {
	worker        Worker
	logger        log.FieldLogger
	initialDelay  time.Duration
	intervalDelay time.Duration
	nextDelay     func(worker Worker, err error) time.Duration
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	// InitialDelay postpones the very first invocation.
	InitialDelay time.Duration

	// IntervalDelayFunc computes the delay until the next invocation from the result
	// of the previous one. The constant interval is used when nil.
	IntervalDelayFunc func(worker Worker, err error) time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with constant delays.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts creates a new instance of PeriodicWorker
// with an ability to specify different optional parameters.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	return &PeriodicWorker{
		worker:        worker,
		logger:        logger,
		initialDelay:  opts.InitialDelay,
		intervalDelay: intervalDelay,
		nextDelay:     opts.IntervalDelayFunc,
	}
}

// Run runs PeriodicWorker loop.
func (pw *PeriodicWorker) Run(ctx context.Context) (resErr error) {
	defer pw.logLoopEnd(&resErr)

	pw.logger.Infof("running periodic worker (initialDelay=%s, intervalDelay=%s)...",
		pw.initialDelay, pw.intervalDelay)

	timer := time.NewTimer(pw.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		err := pw.worker.Run(ctx)
		if err != nil {
			if errors.Is(err, ErrPeriodicWorkerStop) {
				return nil
			}
			pw.logger.Error("periodically running worker finished with error", log.Error(err))
		}

		delay := pw.intervalDelay
		if pw.nextDelay != nil {
			delay = pw.nextDelay(pw.worker, err)
		}
		timer.Stop()
		timer = time.NewTimer(delay)
	}
}

func (pw *PeriodicWorker) logLoopEnd(resErr *error) {
	if p := recover(); p != nil {
		const logStackSize = 8192
		stack := make([]byte, logStackSize)
		stack = stack[:runtime.Stack(stack, false)]
		pw.logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", stack))
		panic(p)
	}
	if *resErr != nil {
		pw.logger.Error("periodic worker stopped with error", log.Error(*resErr))
		return
	}
	pw.logger.Info("periodic worker stopped successfully")
}
