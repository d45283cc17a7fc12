package collector

import (
	"context"
	"time"

	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

// TmuxLister is the part of the tmux client the collector needs.
type TmuxLister interface {
	ListClients(ctx context.Context) ([]models.TmuxClient, error)
	ListSessions(ctx context.Context) ([]models.TmuxSession, error)
}

// TmuxCollector snapshots tmux clients and sessions.
type TmuxCollector struct {
	tmux     TmuxLister
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *logrus.Entry
}

// NewTmuxCollector creates a new TmuxCollector.
func NewTmuxCollector(tmux TmuxLister, interval time.Duration, logger *logrus.Entry) *TmuxCollector {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &TmuxCollector{tmux: tmux, interval: interval, timeout: interval, now: time.Now, logger: logger}
}

// Name returns the collector's name.
func (c *TmuxCollector) Name() string { return "tmux" }

// Run starts the tmux polling loop.
func (c *TmuxCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	scan := func() {
		send(ctx, updates, store.Update{Type: store.UpdateTmux, Source: c.Name(), Payload: c.Capture(ctx)})
	}

	scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

// Capture takes one snapshot. A failure is reported in Err so the store
// keeps serving the previous view.
func (c *TmuxCollector) Capture(ctx context.Context) store.TmuxSnapshot {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snap := store.TmuxSnapshot{CapturedAt: c.now().UTC()}
	clients, err := c.tmux.ListClients(ctx)
	if err == nil {
		snap.Clients = clients
		snap.Sessions, err = c.tmux.ListSessions(ctx)
	}
	if err != nil {
		c.logger.WithError(err).Debug("tmux snapshot failed")
		return store.TmuxSnapshot{Err: err.Error()}
	}
	return snap
}
