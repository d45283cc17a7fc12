package process

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Prober performs the raw process checks. Tests substitute a fake.
type Prober interface {
	Alive(pid int) (bool, error)
	StartTime(pid int) (int64, error)
}

// SystemProber probes the real process table.
type SystemProber struct{}

func (SystemProber) Alive(pid int) (bool, error)      { return IsProcessAlive(pid), nil }
func (SystemProber) StartTime(pid int) (int64, error) { return StartTime(pid) }

const (
	DefaultCacheTTL     = 2 * time.Second
	DefaultProbeTimeout = 200 * time.Millisecond

	// startTimeTolerance absorbs rounding between two start-time readings
	// of the same process.
	startTimeTolerance = 1
)

type cacheEntry struct {
	record    models.ProcessLivenessRecord
	checkedAt time.Time
}

// Tracker caches liveness per pid with a short TTL. Concurrent probes of
// the same pid share one system call.
type Tracker struct {
	prober  Prober
	now     func() time.Time
	ttl     time.Duration
	timeout time.Duration
	log     *logrus.Entry

	mu    sync.Mutex
	cache map[int]cacheEntry
	sf    singleflight.Group
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

func WithProber(p Prober) TrackerOption { return func(t *Tracker) { t.prober = p } }

func WithClock(now func() time.Time) TrackerOption { return func(t *Tracker) { t.now = now } }

func WithCacheTTL(ttl time.Duration) TrackerOption {
	return func(t *Tracker) {
		if ttl >= 0 {
			t.ttl = ttl
		}
	}
}

func WithProbeTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewTracker returns a Tracker backed by the system prober unless overridden.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		prober:  SystemProber{},
		now:     time.Now,
		ttl:     DefaultCacheTTL,
		timeout: DefaultProbeTimeout,
		log:     logging.NewLogger("liveness"),
		cache:   make(map[int]cacheEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Probe returns the liveness of pid and its cached record. A probe that
// errors or exceeds the probe timeout yields LivenessUnknown and is not cached.
func (t *Tracker) Probe(ctx context.Context, pid int) (models.ProcessLivenessRecord, models.Liveness) {
	if pid <= 0 {
		return models.ProcessLivenessRecord{PID: pid}, models.LivenessDead
	}
	if rec, ok := t.cached(pid); ok {
		return rec, livenessOf(rec)
	}

	v, _, _ := t.sf.Do(strconv.Itoa(pid), func() (interface{}, error) {
		// Another caller may have filled the cache while we waited.
		if rec, ok := t.cached(pid); ok {
			return probeResult{rec, livenessOf(rec)}, nil
		}
		return t.probe(ctx, pid), nil
	})
	res := v.(probeResult)
	return res.record, res.liveness
}

type probeResult struct {
	record   models.ProcessLivenessRecord
	liveness models.Liveness
}

func (t *Tracker) probe(ctx context.Context, pid int) probeResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan probeResult, 1)
	go func() {
		done <- t.probeNow(pid)
	}()

	select {
	case res := <-done:
		if res.liveness != models.LivenessUnknown {
			t.store(res.record)
		}
		return res
	case <-ctx.Done():
		t.log.WithField("pid", pid).Debug("liveness probe timed out")
		return probeResult{models.ProcessLivenessRecord{PID: pid}, models.LivenessUnknown}
	}
}

func (t *Tracker) probeNow(pid int) probeResult {
	now := t.now()
	alive, err := t.prober.Alive(pid)
	if err != nil {
		t.log.WithError(err).WithField("pid", pid).Debug("liveness probe failed")
		return probeResult{models.ProcessLivenessRecord{PID: pid}, models.LivenessUnknown}
	}
	if !alive {
		return probeResult{models.ProcessLivenessRecord{PID: pid, LastSeenAt: now}, models.LivenessDead}
	}

	started, err := t.prober.StartTime(pid)
	if err != nil {
		// Alive but start time unreadable: the reuse guard cannot apply.
		started = 0
	}
	return probeResult{
		models.ProcessLivenessRecord{PID: pid, ProcStarted: started, Alive: true, LastSeenAt: now},
		models.LivenessAlive,
	}
}

func (t *Tracker) cached(pid int) (models.ProcessLivenessRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.cache[pid]
	if !ok || t.now().Sub(e.checkedAt) >= t.ttl {
		return models.ProcessLivenessRecord{}, false
	}
	return e.record, true
}

func (t *Tracker) store(rec models.ProcessLivenessRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.cache[rec.PID]; ok && prev.record.Alive && rec.Alive &&
		prev.record.ProcStarted != 0 && rec.ProcStarted != 0 &&
		!sameStart(prev.record.ProcStarted, rec.ProcStarted) {
		t.log.WithFields(logrus.Fields{
			"pid":         rec.PID,
			"old_started": prev.record.ProcStarted,
			"new_started": rec.ProcStarted,
		}).Debug("pid reused")
	}
	if !rec.Alive {
		// The process exited: drop whatever start time we had for it.
		rec.ProcStarted = 0
	}
	t.cache[rec.PID] = cacheEntry{record: rec, checkedAt: t.now()}
}

// Forget drops the cached entry for pid.
func (t *Tracker) Forget(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cache, pid)
}

// Liveness returns alive, dead or unknown for pid.
func (t *Tracker) Liveness(ctx context.Context, pid int) models.Liveness {
	_, l := t.Probe(ctx, pid)
	return l
}

// IsAlive reports whether pid exists. An unknown result counts as alive so
// a slow probe never causes a live lock to be stolen.
func (t *Tracker) IsAlive(ctx context.Context, pid int) bool {
	return t.Liveness(ctx, pid) != models.LivenessDead
}

// SameProcess is Liveness plus the PID-reuse guard: a live pid whose start
// time differs from expected is reported dead. expected == 0 skips the guard.
func (t *Tracker) SameProcess(ctx context.Context, pid int, expected int64) models.Liveness {
	rec, l := t.Probe(ctx, pid)
	if l != models.LivenessAlive || expected == 0 || rec.ProcStarted == 0 {
		return l
	}
	if !sameStart(rec.ProcStarted, expected) {
		return models.LivenessDead
	}
	return models.LivenessAlive
}

// IsSameProcess reports whether pid is alive and is the process that started
// at expected.
func (t *Tracker) IsSameProcess(ctx context.Context, pid int, expected int64) bool {
	return t.SameProcess(ctx, pid, expected) != models.LivenessDead
}

// StartTimeOf returns the start time of a live pid, or 0.
func (t *Tracker) StartTimeOf(ctx context.Context, pid int) int64 {
	rec, l := t.Probe(ctx, pid)
	if l != models.LivenessAlive {
		return 0
	}
	return rec.ProcStarted
}

func livenessOf(rec models.ProcessLivenessRecord) models.Liveness {
	if rec.Alive {
		return models.LivenessAlive
	}
	return models.LivenessDead
}

func sameStart(a, b int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= startTimeTolerance
}
