package lock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

// ExitReason is why a Holder stopped.
type ExitReason string

const (
	// ExitProcessExited: the monitored pid died; the holder deleted the lock.
	ExitProcessExited ExitReason = "process_exited"
	// ExitLockRemoved: someone else deleted the lock; nothing to clean up.
	ExitLockRemoved ExitReason = "lock_removed"
	// ExitTakenOver: the lock now names another pid; left in place.
	ExitTakenOver ExitReason = "taken_over"
	// ExitMaxLifetime: the holder hit its lifetime cap and deleted the lock.
	ExitMaxLifetime ExitReason = "max_lifetime"
	// ExitCanceled: the context was canceled; the lock is left in place.
	ExitCanceled ExitReason = "canceled"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxLifetime  = 24 * time.Hour
)

// HolderCommand is the subcommand that runs a Holder; the orphan sweep
// recognizes holder processes by it.
const HolderCommand = "lock-holder"

// Holder watches one lock on behalf of one pid.
type Holder struct {
	Manager      *Manager
	Lock         models.LockInfo
	Liveness     LivenessChecker
	PollInterval time.Duration
	// MaxLifetime forcibly releases the lock even while the pid is alive.
	// This is a known bug kept for compatibility: a session running longer
	// than MaxLifetime loses its lock.
	MaxLifetime time.Duration

	now func() time.Time
	log *logrus.Entry
}

// NewHolder returns a Holder with default intervals.
func NewHolder(m *Manager, info models.LockInfo, liveness LivenessChecker) *Holder {
	return &Holder{
		Manager:      m,
		Lock:         info,
		Liveness:     liveness,
		PollInterval: DefaultPollInterval,
		MaxLifetime:  DefaultMaxLifetime,
		now:          time.Now,
		log: logging.NewLogger("lock-holder").WithFields(logrus.Fields{
			"lock": filepath.Base(info.Dir),
			"pid":  info.PID,
		}),
	}
}

// Run polls until one exit condition holds. fsnotify events on the lock
// directory trigger an immediate check between ticks.
func (h *Holder) Run(ctx context.Context) (ExitReason, error) {
	started := h.now()

	var events <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		// Watch both the lock and its parent so removal of either is seen.
		_ = watcher.Add(h.Lock.Dir)
		_ = watcher.Add(filepath.Dir(h.Lock.Dir))
		events = watcher.Events
	} else {
		h.log.WithError(err).Debug("fsnotify unavailable, polling only")
	}

	ticker := time.NewTicker(h.PollInterval)
	defer ticker.Stop()

	for {
		if reason, done := h.check(ctx, started); done {
			return reason, h.finish(ctx, reason)
		}

		select {
		case <-ctx.Done():
			h.log.Debug("holder canceled")
			return ExitCanceled, nil
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.log.Debugf("fsnotify event: %s op=%v", ev.Name, ev.Op)
		}
	}
}

func (h *Holder) check(ctx context.Context, started time.Time) (ExitReason, bool) {
	if _, err := os.Stat(h.Lock.Dir); os.IsNotExist(err) {
		return ExitLockRemoved, true
	}

	if pid, err := ReadPID(h.Lock.Dir); err == nil && pid != h.Lock.PID {
		return ExitTakenOver, true
	} else if err != nil && os.IsNotExist(err) {
		if _, statErr := os.Stat(h.Lock.Dir); os.IsNotExist(statErr) {
			return ExitLockRemoved, true
		}
	}

	if h.Liveness.SameProcess(ctx, h.Lock.PID, h.Lock.ProcStarted) == models.LivenessDead {
		return ExitProcessExited, true
	}

	if h.MaxLifetime > 0 && h.now().Sub(started) >= h.MaxLifetime {
		return ExitMaxLifetime, true
	}
	return "", false
}

func (h *Holder) finish(ctx context.Context, reason ExitReason) error {
	log := h.log.WithField("reason", reason)
	switch reason {
	case ExitProcessExited:
		log.Info("monitored process exited, releasing lock")
	case ExitMaxLifetime:
		log.Warn("max lifetime reached, releasing lock although the process may be alive")
	default:
		log.Info("holder exiting without cleanup")
		return nil
	}
	// The lock may have been handed off or reclaimed since the last check.
	_, err := h.Manager.RemoveOwned(context.WithoutCancel(ctx), h.Lock)
	return err
}
