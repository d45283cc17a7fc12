// Package lock is the filesystem fallback used when the daemon is down or
// bypassed. A lock is a directory named {session_id}-{pid}.lock; os.Mkdir
// either creates it or fails because it exists, and that is the only mutual
// exclusion primitive.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/petekp/claude-hud-sub008/command"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	pidFileName  = "pid"
	metaFileName = "meta.json"
	lockSuffix   = ".lock"

	// maxAcquireAttempts bounds remove-and-retry when reclaiming dead locks.
	maxAcquireAttempts = 3

	DefaultPartialGrace = 2 * time.Second

	guardSuffix = ".reclaim"
	guardWait   = time.Second
	guardPoll   = 10 * time.Millisecond
	// guardAbandoned is how old a reclaim guard must be before it is
	// assumed to belong to a crashed process.
	guardAbandoned = 10 * time.Second
)

// LivenessChecker is satisfied by *process.Tracker.
type LivenessChecker interface {
	SameProcess(ctx context.Context, pid int, expected int64) models.Liveness
}

// Manager creates, inspects and removes locks in one directory.
type Manager struct {
	dir          string
	liveness     LivenessChecker
	partialGrace time.Duration
	now          func() time.Time
	validator    *command.SafeBuilder
	log          *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

func WithPartialGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.partialGrace = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager returns a Manager for dir.
func NewManager(dir string, liveness LivenessChecker, opts ...Option) *Manager {
	m := &Manager{
		dir:          dir,
		liveness:     liveness,
		partialGrace: DefaultPartialGrace,
		now:          time.Now,
		validator:    command.NewSafeBuilder(),
		log:          logging.NewLogger("lock"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the lock directory.
func (m *Manager) Dir() string { return m.dir }

// Name returns the directory name of the lock for (sessionID, pid).
func Name(sessionID string, pid int) string {
	return fmt.Sprintf("%s-%d%s", sessionID, pid, lockSuffix)
}

// Path returns the lock directory for (sessionID, pid).
func (m *Manager) Path(sessionID string, pid int) string {
	return filepath.Join(m.dir, Name(sessionID, pid))
}

// Create atomically creates the lock described by info. It fails with
// LOCK_EXISTS when the directory is already present.
func (m *Manager) Create(info models.LockInfo) (*models.LockInfo, error) {
	if err := m.validator.Validate("sessionID", info.SessionID); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid session id")
	}
	if info.PID <= 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid pid %d", info.PID))
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create lock directory")
	}

	path := m.Path(info.SessionID, info.PID)
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return nil, errors.LockExists(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create lock").WithDetail("lock", path)
	}

	info.Created = m.now().UTC()
	info.LockVersion = models.LockVersion
	info.Dir = path
	if err := writeLockFiles(path, info); err != nil {
		// Never leave a half-written lock behind.
		os.RemoveAll(path)
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write lock").WithDetail("lock", path)
	}
	return &info, nil
}

// Acquire creates the lock for info, reclaiming an existing one when its
// holder is dead, its start time does not match, or it is a partial lock
// older than the partial grace period. A live holder yields LOCK_HELD.
func (m *Manager) Acquire(ctx context.Context, info models.LockInfo) (*models.LockInfo, error) {
	path := m.Path(info.SessionID, info.PID)

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		created, err := m.Create(info)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, errors.ErrCodeLockExists) {
			return nil, err
		}

		existing, readErr := m.Read(path)
		switch {
		case readErr == nil:
			if m.liveness.SameProcess(ctx, existing.PID, existing.ProcStarted) != models.LivenessDead {
				return nil, errors.LockHeld(path, existing.PID)
			}
		case errors.Is(readErr, errors.ErrCodeLockNotFound):
			continue
		case errors.Is(readErr, errors.ErrCodeLockCorrupt):
			age, ok := m.age(path)
			if !ok {
				continue
			}
			if age < m.partialGrace {
				// Probably still being written by another creator.
				return nil, err
			}
		default:
			return nil, readErr
		}

		if _, err := m.RemoveStale(ctx, path); err != nil {
			return nil, err
		}
	}

	return nil, errors.LockExists(path).WithDetail("attempts", maxAcquireAttempts)
}

// RemoveStale deletes the lock at path if, checked again under the reclaim
// guard, its holder is dead or it is a partial lock past the grace period.
// A verdict reached before taking the guard may be outdated: another caller
// can reclaim the same lock and create a live one in its place.
func (m *Manager) RemoveStale(ctx context.Context, path string) (bool, error) {
	removed := false
	err := m.withGuard(ctx, path, func() error {
		if !m.stale(ctx, path) {
			return nil
		}
		m.log.WithField("lock", path).Info("reclaiming stale lock")
		removed = true
		return discard(path)
	})
	return removed, err
}

// RemoveOwned deletes the lock at owner.Dir only while it still records
// owner's pid and start time.
func (m *Manager) RemoveOwned(ctx context.Context, owner models.LockInfo) (bool, error) {
	removed := false
	err := m.withGuard(ctx, owner.Dir, func() error {
		current, err := readLock(owner.Dir)
		if err != nil || current.PID != owner.PID || current.ProcStarted != owner.ProcStarted {
			return nil
		}
		removed = true
		return discard(owner.Dir)
	})
	return removed, err
}

func (m *Manager) stale(ctx context.Context, path string) bool {
	info, err := readLock(path)
	switch {
	case err == nil:
		return m.liveness.SameProcess(ctx, info.PID, info.ProcStarted) == models.LivenessDead
	case errors.Is(err, errors.ErrCodeLockCorrupt):
		age, ok := m.age(path)
		return ok && age >= m.partialGrace
	default:
		return false
	}
}

// withGuard runs fn while holding path's reclaim guard, a sibling directory
// created with os.Mkdir. Every deletion and in-place rewrite of a lock runs
// under it; creation does not need it.
func (m *Manager) withGuard(ctx context.Context, path string, fn func() error) error {
	guard := path + guardSuffix
	deadline := time.Now().Add(guardWait)
	for {
		err := os.Mkdir(guard, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to take reclaim guard").WithDetail("lock", path)
		}
		if st, statErr := os.Stat(guard); statErr == nil && time.Since(st.ModTime()) >= guardAbandoned {
			m.log.WithField("guard", guard).Warn("removing abandoned reclaim guard")
			if err := discard(guard); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to remove reclaim guard")
			}
			continue
		}
		if time.Now().After(deadline) {
			return errors.LockExists(path).WithDetail("guard", guard)
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "waiting for reclaim guard").WithDetail("lock", path)
		case <-time.After(guardPoll):
		}
	}
	defer os.Remove(guard)
	return fn()
}

// discard renames path aside before deleting it, so the lock name is freed
// in one step and readers never see a half-deleted lock.
func discard(path string) error {
	aside := fmt.Sprintf("%s.stale-%d-%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, aside); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.RemoveAll(aside)
}

// Handoff moves the lock described by from to newPID by rewriting its pid
// and metadata in place. The directory keeps its original name and is never
// deleted, so there is no window in which the session appears unlocked. A
// lock that changed owner since from was read is LOCK_NOT_OWNED.
func (m *Manager) Handoff(ctx context.Context, from models.LockInfo, newPID int, procStarted int64) (*models.LockInfo, error) {
	var out *models.LockInfo
	err := m.withGuard(ctx, from.Dir, func() error {
		info, err := readLock(from.Dir)
		if err != nil {
			return err
		}
		if info.PID != from.PID || info.ProcStarted != from.ProcStarted {
			return errors.New(errors.ErrCodeLockNotOwned,
				fmt.Sprintf("lock %s is now owned by pid %d", from.Dir, info.PID)).WithDetail("pid", info.PID)
		}
		info.PID = newPID
		info.ProcStarted = procStarted
		if err := writeLockFiles(from.Dir, *info); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to rewrite lock").WithDetail("lock", from.Dir)
		}
		out = info
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"lock": from.Dir, "from_pid": from.PID, "pid": newPID}).Info("handed lock off")
	return out, nil
}

// Find returns the session's lock currently recorded for pid. After a
// handoff the directory name still carries the previous pid.
func (m *Manager) Find(sessionID string, pid int) (*models.LockInfo, error) {
	locks, err := m.FindBySession(sessionID)
	if err != nil {
		return nil, err
	}
	for _, info := range locks {
		if info.PID == pid {
			return &info, nil
		}
	}
	return nil, errors.New(errors.ErrCodeLockNotFound,
		fmt.Sprintf("no lock for session %s and pid %d", sessionID, pid)).
		WithDetail("session_id", sessionID).WithDetail("pid", pid)
}

// Release deletes the lock for (sessionID, pid) if pid still owns it.
func (m *Manager) Release(ctx context.Context, sessionID string, pid int) error {
	info, err := m.Find(sessionID, pid)
	if err == nil {
		_, err = m.RemoveOwned(ctx, *info)
		return err
	}
	if !errors.Is(err, errors.ErrCodeLockNotFound) {
		return err
	}
	locks, err := m.FindBySession(sessionID)
	if err != nil {
		return err
	}
	if len(locks) > 0 {
		return errors.New(errors.ErrCodeLockNotOwned,
			fmt.Sprintf("lock for session %s is owned by pid %d", sessionID, locks[0].PID)).
			WithDetail("pid", locks[0].PID)
	}
	return nil
}

// Read loads the lock at path. A lock missing either file, or whose files
// disagree, is LOCK_CORRUPT.
func (m *Manager) Read(path string) (*models.LockInfo, error) {
	return readLock(path)
}

// List returns every readable lock. Corrupt locks are skipped.
func (m *Manager) List() ([]models.LockInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read lock directory")
	}

	var locks []models.LockInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), lockSuffix) {
			continue
		}
		info, err := readLock(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			m.log.WithError(err).WithField("lock", entry.Name()).Debug("skipping unreadable lock")
			continue
		}
		locks = append(locks, *info)
	}
	return locks, nil
}

// FindBySession returns the locks whose metadata names sessionID.
func (m *Manager) FindBySession(sessionID string) ([]models.LockInfo, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var out []models.LockInfo
	for _, info := range all {
		if info.SessionID == sessionID {
			out = append(out, info)
		}
	}
	return out, nil
}

// Partial returns lock directories that cannot be read.
func (m *Manager) Partial() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), lockSuffix) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		if _, err := readLock(path); err != nil {
			out = append(out, path)
		}
	}
	return out
}

func (m *Manager) age(path string) (time.Duration, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return m.now().Sub(st.ModTime()), true
}

func readLock(path string) (*models.LockInfo, error) {
	pidData, err := os.ReadFile(filepath.Join(path, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				return nil, errors.New(errors.ErrCodeLockNotFound, "lock does not exist").WithDetail("lock", path)
			}
		}
		return nil, corrupt(path, "missing pid file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return nil, corrupt(path, "unparseable pid file")
	}

	metaData, err := os.ReadFile(filepath.Join(path, metaFileName))
	if err != nil {
		return nil, corrupt(path, "missing metadata")
	}
	var info models.LockInfo
	if err := json.Unmarshal(metaData, &info); err != nil {
		return nil, corrupt(path, "unparseable metadata")
	}
	if info.PID != pid {
		return nil, corrupt(path, fmt.Sprintf("pid file says %d, metadata says %d", pid, info.PID))
	}
	info.Dir = path
	return &info, nil
}

func corrupt(path, reason string) error {
	return errors.New(errors.ErrCodeLockCorrupt, fmt.Sprintf("corrupt lock %s: %s", path, reason)).
		WithDetail("lock", path)
}

// ReadPID reads only the pid file, which the holder polls.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(filepath.Join(path, pidFileName))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// writeLockFiles writes meta.json then pid, each via a temp file and rename
// inside the lock directory, so readers see either the old or the new file.
func writeLockFiles(dir string, info models.LockInfo) error {
	meta, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(dir, metaFileName, meta); err != nil {
		return err
	}
	return writeAtomic(dir, pidFileName, []byte(strconv.Itoa(info.PID)+"\n"))
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
