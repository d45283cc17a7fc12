package daemon

import (
	"context"
	"net"
	"time"

	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
)

// probeTimeout bounds the dial New uses to decide whether a daemon is up.
const probeTimeout = 100 * time.Millisecond

// New returns a Client that will use the daemon if available, otherwise
// falls back to LocalClient.
//
// This implements the "transparent daemon" pattern: callers don't need
// to know whether the daemon is running or not. When it is, transient
// failures on individual calls still degrade to the lock directory.
func New(cfg *config.Config) Client {
	tracker := process.NewTracker(
		process.WithCacheTTL(cfg.Liveness.CacheTTL.D()),
		process.WithProbeTimeout(cfg.Liveness.ProbeTimeout.D()),
	)
	local := NewLocalClient(
		lock.NewManager(cfg.LocksDir(), tracker, lock.WithPartialGrace(cfg.Lock.PartialGrace.D())),
		tracker,
	)

	socketPath := cfg.SocketPath()
	conn, err := net.DialTimeout("unix", socketPath, probeTimeout)
	if err != nil {
		return local
	}
	conn.Close()
	return NewWithFallback(NewRemoteClient(socketPath, cfg.Daemon.RequestTimeout.D()), local)
}

// Transient reports whether err means the daemon could not answer, as
// opposed to answering with an error.
func Transient(err error) bool {
	return errors.Is(err, errors.ErrCodeDaemonUnavailable) || errors.Is(err, errors.ErrCodeTimeout)
}

// WithFallback wraps a Client to provide graceful degradation.
// If the primary client fails transiently, the fallback answers.
type WithFallback struct {
	Primary  Client
	Fallback Client
}

// NewWithFallback creates a client that tries the daemon first,
// then falls back to local execution.
func NewWithFallback(primary, fallback Client) *WithFallback {
	return &WithFallback{Primary: primary, Fallback: fallback}
}

func (w *WithFallback) Send(ctx context.Context, ev models.Event) (models.IngestResult, error) {
	res, err := w.Primary.Send(ctx, ev)
	if Transient(err) {
		return w.Fallback.Send(ctx, ev)
	}
	return res, err
}

func (w *WithFallback) Health(ctx context.Context) (*models.Health, error) {
	return w.Primary.Health(ctx)
}

func (w *WithFallback) Sessions(ctx context.Context, includeIdle bool) ([]models.SessionView, error) {
	views, err := w.Primary.Sessions(ctx, includeIdle)
	if Transient(err) {
		return w.Fallback.Sessions(ctx, includeIdle)
	}
	return views, err
}

func (w *WithFallback) ProjectStates(ctx context.Context, projectPaths []string) ([]models.ProjectState, error) {
	states, err := w.Primary.ProjectStates(ctx, projectPaths)
	if Transient(err) {
		return w.Fallback.ProjectStates(ctx, projectPaths)
	}
	return states, err
}

func (w *WithFallback) Shells(ctx context.Context, pid int) ([]models.ShellRecord, error) {
	shells, err := w.Primary.Shells(ctx, pid)
	if Transient(err) {
		return w.Fallback.Shells(ctx, pid)
	}
	return shells, err
}

func (w *WithFallback) Activity(ctx context.Context, projectPath string, limit int) ([]models.ActivityEntry, error) {
	entries, err := w.Primary.Activity(ctx, projectPath, limit)
	if Transient(err) {
		return w.Fallback.Activity(ctx, projectPath, limit)
	}
	return entries, err
}

// Route keeps the primary's unavailable decision so the reason code tells
// the caller why routing degraded.
func (w *WithFallback) Route(ctx context.Context, projectPath, workspaceID string) (models.RoutingDecision, error) {
	return w.Primary.Route(ctx, projectPath, workspaceID)
}

func (w *WithFallback) RouteDiagnostics(ctx context.Context, projectPath, workspaceID string) (*models.RoutingDiagnostics, error) {
	return w.Primary.RouteDiagnostics(ctx, projectPath, workspaceID)
}

func (w *WithFallback) IsRunning() bool { return w.Primary.IsRunning() }

func (w *WithFallback) Close() error {
	err := w.Primary.Close()
	if ferr := w.Fallback.Close(); err == nil {
		err = ferr
	}
	return err
}

var _ Client = (*WithFallback)(nil)
