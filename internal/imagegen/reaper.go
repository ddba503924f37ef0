/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"context"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/service"
)

// DefaultReapInterval is the default pause between reaper runs.
const DefaultReapInterval = time.Minute

// Reaper purges expired jobs from the store. It implements service.Worker
// and is supposed to be run by service.PeriodicWorker.
type Reaper struct {
	store  JobStore
	logger log.FieldLogger
}

var _ service.Worker = (*Reaper)(nil)

// NewReaper creates a new Reaper.
func NewReaper(store JobStore, logger log.FieldLogger) *Reaper {
	return &Reaper{store: store, logger: log.NewPrefixedLogger(logger, "job reaper: ")}
}

// Run removes jobs whose retention period has elapsed.
func (r *Reaper) Run(_ context.Context) error {
	removed := r.store.DeleteExpired(time.Now().UTC())
	if removed > 0 {
		r.logger.Info("expired image generation jobs purged",
			log.Int("removed", removed), log.Int("remaining", r.store.Len()))
	}
	return nil
}
