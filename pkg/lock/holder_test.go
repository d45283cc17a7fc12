package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holderResult struct {
	reason ExitReason
	err    error
}

func startHolder(t *testing.T, h *Holder) (<-chan holderResult, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan holderResult, 1)
	go func() {
		reason, err := h.Run(ctx)
		done <- holderResult{reason, err}
	}()
	t.Cleanup(cancel)
	return done, cancel
}

func waitResult(t *testing.T, done <-chan holderResult) holderResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("holder did not exit")
		return holderResult{}
	}
}

func newHolderFixture(t *testing.T) (*Manager, *fakeLiveness, *Holder) {
	t.Helper()
	live := newFakeLiveness()
	live.set(100, true, 500)
	m := newTestManager(t, live)
	info, err := m.Create(models.LockInfo{SessionID: "s1", PID: 100, ProcStarted: 500})
	require.NoError(t, err)

	h := NewHolder(m, *info, live)
	h.PollInterval = 20 * time.Millisecond
	return m, live, h
}

func TestHolderReleasesWhenProcessExits(t *testing.T) {
	_, live, h := newHolderFixture(t)
	done, _ := startHolder(t, h)

	live.set(100, false, 0)
	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, ExitProcessExited, r.reason)
	assert.NoDirExists(t, h.Lock.Dir)
}

func TestHolderExitsWhenLockRemoved(t *testing.T) {
	_, _, h := newHolderFixture(t)
	done, _ := startHolder(t, h)

	require.NoError(t, os.RemoveAll(h.Lock.Dir))
	r := waitResult(t, done)
	assert.Equal(t, ExitLockRemoved, r.reason)
}

func TestHolderExitsWithoutCleanupOnTakeover(t *testing.T) {
	m, live, h := newHolderFixture(t)
	live.set(200, true, 600)
	done, _ := startHolder(t, h)

	_, err := m.Handoff(context.Background(), h.Lock, 200, 600)
	require.NoError(t, err)

	r := waitResult(t, done)
	assert.Equal(t, ExitTakenOver, r.reason)
	assert.DirExists(t, h.Lock.Dir)
	pid, err := ReadPID(h.Lock.Dir)
	require.NoError(t, err)
	assert.Equal(t, 200, pid)
}

// The lifetime cap releases the lock even though pid 100 is still alive.
func TestHolderMaxLifetimeReleasesLiveLock(t *testing.T) {
	_, _, h := newHolderFixture(t)
	h.MaxLifetime = 60 * time.Millisecond
	done, _ := startHolder(t, h)

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, ExitMaxLifetime, r.reason)
	assert.NoDirExists(t, h.Lock.Dir)
}

func TestHolderCanceled(t *testing.T) {
	_, _, h := newHolderFixture(t)
	done, cancel := startHolder(t, h)

	cancel()
	r := waitResult(t, done)
	assert.Equal(t, ExitCanceled, r.reason)
	assert.DirExists(t, h.Lock.Dir)
}
