package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLiveness map[int]models.Liveness

func (f fakeLiveness) SameProcess(ctx context.Context, pid int, expected int64) models.Liveness {
	if l, ok := f[pid]; ok {
		return l
	}
	return models.LivenessDead
}

func newLocal(t *testing.T, live fakeLiveness) *LocalClient {
	m := lock.NewManager(filepath.Join(t.TempDir(), "locks"), live)
	return NewLocalClient(m, live)
}

func hookEvent(typ models.EventType, sessionID string, pid int) models.Event {
	return models.Event{EventID: string(typ) + sessionID, Type: typ, SessionID: sessionID, PID: pid, RecordedAt: time.Now(), CWD: "/code/api"}
}

func TestLocalLifecycle(t *testing.T) {
	live := fakeLiveness{100: models.LivenessAlive}
	c := newLocal(t, live)
	ctx := context.Background()

	res, err := c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, SkipAlreadyLocked, res.SkippedReason)

	res, err = c.Send(ctx, hookEvent(models.EventUserPromptSubmit, "s1", 100))
	require.NoError(t, err)
	assert.Equal(t, SkipNoDaemon, res.SkippedReason)

	views, err := c.Sessions(ctx, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.StateReady, views[0].EffectiveState)
	assert.Equal(t, "/code/api", views[0].CWD)

	states, err := c.ProjectStates(ctx, []string{"/code/api"})
	require.NoError(t, err)
	assert.Equal(t, models.StateReady, states[0].State)

	res, err = c.Send(ctx, hookEvent(models.EventSessionEnd, "s1", 100))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	views, err = c.Sessions(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestLocalDeadHolderReadsIdle(t *testing.T) {
	live := fakeLiveness{100: models.LivenessAlive}
	c := newLocal(t, live)
	ctx := context.Background()

	_, err := c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	live[100] = models.LivenessDead

	views, err := c.Sessions(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, views)

	views, err = c.Sessions(ctx, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.StateIdle, views[0].EffectiveState)
	assert.Equal(t, models.LivenessDead, views[0].Liveness)
}

func TestLocalRejectsInvalidEvent(t *testing.T) {
	c := newLocal(t, fakeLiveness{})
	_, err := c.Send(context.Background(), models.Event{Type: models.EventSessionStart})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestLocalRouteUnavailable(t *testing.T) {
	c := newLocal(t, fakeLiveness{})
	d, err := c.Route(context.Background(), "/code/api", "")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionUnavailable, d.Status)
	assert.Equal(t, models.ReasonDaemonUnavailable, d.ReasonCode)
}

func TestWithFallbackDegradesOnTransientErrors(t *testing.T) {
	live := fakeLiveness{100: models.LivenessAlive}
	local := newLocal(t, live)
	remote := NewRemoteClient(filepath.Join(t.TempDir(), "gone.sock"), 50*time.Millisecond)
	c := NewWithFallback(remote, local)
	ctx := context.Background()

	res, err := c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	locks, err := local.Locks().FindBySession("s1")
	require.NoError(t, err)
	assert.Len(t, locks, 1)

	views, err := c.Sessions(ctx, false)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	d, err := c.Route(ctx, "/code/api", "")
	assert.Error(t, err)
	assert.Equal(t, models.ReasonDaemonUnavailable, d.ReasonCode)
}

func TestLocalSessionStartHandsOffLiveLock(t *testing.T) {
	live := fakeLiveness{100: models.LivenessAlive, 200: models.LivenessAlive}
	c := newLocal(t, live)
	ctx := context.Background()

	_, err := c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	orig, err := c.Locks().Find("s1", 100)
	require.NoError(t, err)

	resumed := hookEvent(models.EventSessionStart, "s1", 200)
	resumed.EventID = "resumed"
	res, err := c.Send(ctx, resumed)
	require.NoError(t, err)
	assert.True(t, res.Applied)

	locks, err := c.Locks().List()
	require.NoError(t, err)
	require.Len(t, locks, 1, "the lock is rewritten, not duplicated")
	assert.Equal(t, 200, locks[0].PID)
	assert.Equal(t, orig.Dir, locks[0].Dir)

	held, err := c.Locks().Find("s1", 200)
	require.NoError(t, err)
	assert.Equal(t, orig.Dir, held.Dir)

	res, err = c.Send(ctx, hookEvent(models.EventSessionEnd, "s1", 200))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.NoDirExists(t, orig.Dir)
}

func TestLocalSessionStartIgnoresDeadLockOfSession(t *testing.T) {
	live := fakeLiveness{100: models.LivenessAlive, 200: models.LivenessAlive}
	c := newLocal(t, live)
	ctx := context.Background()

	_, err := c.Send(ctx, hookEvent(models.EventSessionStart, "s1", 100))
	require.NoError(t, err)
	live[100] = models.LivenessDead

	resumed := hookEvent(models.EventSessionStart, "s1", 200)
	resumed.EventID = "resumed"
	_, err = c.Send(ctx, resumed)
	require.NoError(t, err)

	_, err = c.Locks().Find("s1", 200)
	require.NoError(t, err)
	assert.DirExists(t, c.Locks().Path("s1", 200))
}
