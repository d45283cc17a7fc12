package collector

import (
	"context"
	"time"

	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

// TerminalProber resolves pid ttys and tty owners from one process listing.
type TerminalProber interface {
	Probe(ctx context.Context, pids []int, ttys []string) (map[string]models.TerminalOwner, map[int]string, error)
}

// TerminalCollector maps the ttys of tracked sessions, shells and tmux
// clients to the terminal apps that own them.
type TerminalCollector struct {
	prober   TerminalProber
	interval time.Duration
	now      func() time.Time
	logger   *logrus.Entry
}

func NewTerminalCollector(prober TerminalProber, interval time.Duration, logger *logrus.Entry) *TerminalCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &TerminalCollector{prober: prober, interval: interval, now: time.Now, logger: logger}
}

func (c *TerminalCollector) Name() string { return "terminal" }

func (c *TerminalCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// session and shell changes trigger an early probe
	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	scan := func() {
		snap, err := c.Capture(ctx, st)
		if err != nil {
			c.logger.WithError(err).Debug("terminal probe failed")
			return
		}
		send(ctx, updates, store.Update{Type: store.UpdateTerminals, Source: c.Name(), Payload: snap})
	}

	scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		case u := <-sub:
			if u.Type == store.UpdateSessions {
				scan()
				ticker.Reset(c.interval)
			}
		}
	}
}

// Capture probes once for everything the store currently tracks.
func (c *TerminalCollector) Capture(ctx context.Context, st *store.Store) (store.TerminalSnapshot, error) {
	var (
		pids []int
		ttys []string
	)
	for _, rec := range st.Sessions() {
		pids = append(pids, rec.PID)
	}
	for _, sh := range st.Shells(0) {
		pids = append(pids, sh.PID)
		if sh.TTY != "" {
			ttys = append(ttys, sh.TTY)
		}
	}
	for _, cl := range st.Tmux().Clients {
		ttys = append(ttys, cl.TTY)
	}

	owners, pidTTYs, err := c.prober.Probe(ctx, pids, ttys)
	if err != nil {
		return store.TerminalSnapshot{}, err
	}
	return store.TerminalSnapshot{Owners: owners, TTYs: pidTTYs, CapturedAt: c.now().UTC()}, nil
}
