package daemon

import (
	"context"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Skip reasons reported by the local client.
const (
	SkipNoDaemon      = "daemon_unavailable"
	SkipAlreadyLocked = reducer.SkipAlreadyActive
)

// LocalClient implements Client from the lock directory. It is used when
// the daemon is not running: SessionStart and SessionEnd create and release
// locks, and sessions are read back from the locks that exist. Every other
// event is accepted but has no effect.
type LocalClient struct {
	locks *lock.Manager
	live  lock.LivenessChecker
	now   func() time.Time
}

// NewLocalClient creates a new LocalClient.
func NewLocalClient(locks *lock.Manager, live lock.LivenessChecker) *LocalClient {
	return &LocalClient{locks: locks, live: live, now: time.Now}
}

// Locks returns the lock manager backing the client.
func (c *LocalClient) Locks() *lock.Manager { return c.locks }

func (c *LocalClient) Send(ctx context.Context, ev models.Event) (models.IngestResult, error) {
	res := models.IngestResult{EventID: ev.EventID}
	if err := ev.Validate(); err != nil {
		return res, errors.InvalidInput(err.Error())
	}

	switch ev.Type {
	case models.EventSessionStart:
		handed, err := c.handoff(ctx, ev)
		if err != nil {
			return res, err
		}
		if handed {
			res.Accepted, res.Applied = true, true
			return res, nil
		}
		path := ev.Payload.ProjectDir
		if path == "" {
			path = ev.CWD
		}
		_, err = c.locks.Acquire(ctx, models.LockInfo{
			PID:         ev.PID,
			Path:        path,
			SessionID:   ev.SessionID,
			ProcStarted: ev.Payload.ProcStarted,
		})
		if errors.Is(err, errors.ErrCodeLockHeld) {
			res.Accepted = true
			res.SkippedReason = SkipAlreadyLocked
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Accepted, res.Applied = true, true
	case models.EventSessionEnd:
		if err := c.locks.Release(ctx, ev.SessionID, ev.PID); err != nil {
			return res, err
		}
		res.Accepted, res.Applied = true, true
	default:
		res.SkippedReason = SkipNoDaemon
	}
	return res, nil
}

// handoff moves a live lock of the same session held under another pid to
// ev.PID, e.g. when a resumed session starts in a new process.
func (c *LocalClient) handoff(ctx context.Context, ev models.Event) (bool, error) {
	locks, err := c.locks.FindBySession(ev.SessionID)
	if err != nil {
		return false, err
	}
	for _, info := range locks {
		if info.PID == ev.PID {
			return false, nil
		}
	}
	for _, info := range locks {
		if c.live.SameProcess(ctx, info.PID, info.ProcStarted) == models.LivenessDead {
			continue
		}
		if _, err := c.locks.Handoff(ctx, info, ev.PID, ev.Payload.ProcStarted); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (c *LocalClient) Health(ctx context.Context) (*models.Health, error) {
	return nil, errors.New(errors.ErrCodeDaemonUnavailable, "daemon is not running")
}

// Sessions reports each lock as a Ready session; a dead holder reads Idle.
func (c *LocalClient) Sessions(ctx context.Context, includeIdle bool) ([]models.SessionView, error) {
	infos, err := c.locks.List()
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	views := make([]models.SessionView, 0, len(infos))
	for _, info := range infos {
		rec := models.SessionRecord{
			SessionID:      info.SessionID,
			PID:            info.PID,
			State:          models.StateReady,
			CWD:            info.Path,
			UpdatedAt:      info.Created,
			StateChangedAt: info.Created,
			ReadyReason:    models.ReadySessionStart,
			ProcStarted:    info.ProcStarted,
		}
		v := reducer.View(rec, now, c.live.SameProcess(ctx, info.PID, info.ProcStarted))
		if v.EffectiveState == models.StateIdle && !includeIdle {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

func (c *LocalClient) ProjectStates(ctx context.Context, projectPaths []string) ([]models.ProjectState, error) {
	views, err := c.Sessions(ctx, true)
	if err != nil {
		return nil, err
	}
	return store.GroupByProject(views, projectPaths), nil
}

func (c *LocalClient) Shells(ctx context.Context, pid int) ([]models.ShellRecord, error) {
	return []models.ShellRecord{}, nil
}

func (c *LocalClient) Activity(ctx context.Context, projectPath string, limit int) ([]models.ActivityEntry, error) {
	return []models.ActivityEntry{}, nil
}

// Route is always unavailable without the daemon's evidence.
func (c *LocalClient) Route(ctx context.Context, projectPath, workspaceID string) (models.RoutingDecision, error) {
	return models.Unavailable(projectPath, models.ReasonDaemonUnavailable), nil
}

func (c *LocalClient) RouteDiagnostics(ctx context.Context, projectPath, workspaceID string) (*models.RoutingDiagnostics, error) {
	d, _ := c.Route(ctx, projectPath, workspaceID)
	return &models.RoutingDiagnostics{
		Decision:    d,
		Evidence:    []models.Evidence{},
		GeneratedAt: c.now().UTC(),
	}, nil
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
