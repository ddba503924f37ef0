/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// blockingUnit behaves like the real units of this service (HTTP server,
// image job manager): Start blocks until Stop is called.
type blockingUnit struct {
	name    string
	running *atomic.Int32
	stopErr error
	stop    chan struct{}

	metricsRegistered   atomic.Int32
	metricsUnregistered atomic.Int32
}

func newBlockingUnit(name string, running *atomic.Int32, stopErr error) *blockingUnit {
	return &blockingUnit{name: name, running: running, stopErr: stopErr, stop: make(chan struct{})}
}

func (u *blockingUnit) Start(_ chan<- error) {
	u.running.Inc()
	<-u.stop
}

func (u *blockingUnit) Stop(gracefully bool) error {
	defer func() {
		close(u.stop)
		u.running.Dec()
	}()
	if u.stopErr != nil {
		return fmt.Errorf("%s: %w", u.name, u.stopErr)
	}
	return nil
}

func (u *blockingUnit) MustRegisterMetrics() { u.metricsRegistered.Inc() }

func (u *blockingUnit) UnregisterMetrics() { u.metricsUnregistered.Inc() }

func waitCount(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(time.Second * 5)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	t.Fatalf("timed out waiting for %d running units, got %d", want, counter.Load())
}

func TestCompositeUnit(t *testing.T) {
	t.Run("starts all units and stops them without errors", func(t *testing.T) {
		const unitsNum = 20
		var running atomic.Int32
		var units []Unit
		for i := 0; i < unitsNum; i++ {
			units = append(units, newBlockingUnit(fmt.Sprintf("unit#%d", i), &running, nil))
		}
		composite := NewCompositeUnit(units...)

		startExited := make(chan struct{})
		go func() {
			defer close(startExited)
			composite.Start(make(chan error))
		}()
		waitCount(t, &running, unitsNum)

		require.NoError(t, composite.Stop(true))
		require.EqualValues(t, 0, running.Load())
		select {
		case <-startExited:
		case <-time.After(time.Second * 5):
			require.Fail(t, "Start didn't return after Stop")
		}
	})

	t.Run("stop errors of all units are collected", func(t *testing.T) {
		const failingNum, okNum = 3, 2
		var running atomic.Int32
		var units []Unit
		for i := 0; i < failingNum; i++ {
			units = append(units, newBlockingUnit(fmt.Sprintf("failing#%d", i), &running, fmt.Errorf("shutdown failed")))
		}
		for i := 0; i < okNum; i++ {
			units = append(units, newBlockingUnit(fmt.Sprintf("ok#%d", i), &running, nil))
		}
		composite := NewCompositeUnit(units...)

		startExited := make(chan struct{})
		go func() {
			defer close(startExited)
			composite.Start(make(chan error))
		}()
		waitCount(t, &running, failingNum+okNum)

		err := composite.Stop(true)
		require.Error(t, err)
		var cuErr *CompositeUnitError
		require.ErrorAs(t, err, &cuErr)
		require.Len(t, cuErr.UnitErrors, failingNum)
		require.EqualValues(t, 0, running.Load())
		<-startExited
	})

	t.Run("metrics registration is delegated to all units", func(t *testing.T) {
		var running atomic.Int32
		first := newBlockingUnit("first", &running, nil)
		second := newBlockingUnit("second", &running, nil)
		composite := NewCompositeUnit(first, second)

		composite.MustRegisterMetrics()
		composite.UnregisterMetrics()
		require.EqualValues(t, 1, first.metricsRegistered.Load())
		require.EqualValues(t, 1, first.metricsUnregistered.Load())
		require.EqualValues(t, 1, second.metricsRegistered.Load())
		require.EqualValues(t, 1, second.metricsUnregistered.Load())
	})
}
