/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
	"sync/atomic"
)

// CompositeUnit bundles several units (HTTP server, submission workers,
// profiling server) so they can be started and stopped as one.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start launches every unit in its own goroutine and blocks until all of them
// return. When any unit reports a fatal error, the remaining units are stopped
// non-gracefully and a single CompositeUnitError carrying all collected errors
// is sent to fatalError.
func (cu *CompositeUnit) Start(fatalError chan<- error) {
	unitErrs := make([]chan error, len(cu.Units))
	for i := range unitErrs {
		unitErrs[i] = make(chan error, 1)
	}

	done := make(chan bool, len(cu.Units))
	remaining := int32(len(cu.Units))
	for i, unit := range cu.Units {
		go func(i int, unit Unit) {
			unit.Start(unitErrs[i])
			if len(unitErrs[i]) != 0 {
				done <- false
				return
			}
			if atomic.AddInt32(&remaining, -1) == 0 {
				done <- true
			}
		}(i, unit)
	}

	if <-done {
		return
	}

	stopErr := cu.Stop(false)

	var errs []error
	for _, unitErr := range unitErrs {
		select {
		case err := <-unitErr:
			errs = append(errs, err)
		default:
		}
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	if len(errs) > 0 {
		fatalError <- &CompositeUnitError{errs}
	}
}

// Stop stops all units concurrently. Errors from individual units are
// collected into a single CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	results := make(chan error, len(cu.Units))

	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, unit := range cu.Units {
		go func(unit Unit) {
			defer wg.Done()
			results <- unit.Stop(gracefully)
		}(unit)
	}
	wg.Wait()
	close(results)

	var errs []error
	for err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &CompositeUnitError{errs}
	}
	return nil
}

// MustRegisterMetrics registers metrics of all units implementing MetricsRegisterer.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, unit := range cu.Units {
		if mr, ok := unit.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units implementing MetricsRegisterer.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, unit := range cu.Units {
		if mr, ok := unit.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError aggregates the errors of the units in a composition.
type CompositeUnitError struct {
	UnitErrors []error
}

// Error joins the unit errors into one message.
func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
