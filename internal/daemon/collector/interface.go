// Package collector provides background workers that observe the machine
// and publish snapshots the store and the router read from.
package collector

import (
	"context"

	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
)

// Collector is a background worker that fetches data and emits updates.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It emits updates via the updates channel and may read the store for
	// context (e.g. which pids are tracked).
	Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error
}

// send delivers u unless ctx is done first.
func send(ctx context.Context, updates chan<- store.Update, u store.Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
