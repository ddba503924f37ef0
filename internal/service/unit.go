/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of the running service with its own lifecycle,
// e.g. the HTTP server, the image generation worker pool or the job reaper.
type Unit interface {
	// Start begins the unit's operation. It may return immediately after
	// initialization or block the calling goroutine until the unit stops.
	//
	// A failure that the unit cannot recover from is reported through fatalErr.
	// Nothing may be written to the channel once Start has returned, and a
	// successful Start must not write to it at all.
	Start(fatalErr chan<- error)

	// Stop halts the unit, cleanly when gracefully is true.
	// It must be safe to call even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus collectors.
// The service registers them before Start and unregisters them after Stop.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
