package process

import (
	"context"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu      sync.Mutex
	alive   map[int]bool
	started map[int]int64
	delay   time.Duration
	calls   int32
}

func newFakeProber() *fakeProber {
	return &fakeProber{alive: map[int]bool{}, started: map[int]int64{}}
}

func (f *fakeProber) set(pid int, alive bool, started int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = alive
	f.started[pid] = started
}

func (f *fakeProber) Alive(pid int) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid], nil
}

func (f *fakeProber) StartTime(pid int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[pid], nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(p Prober, clock *fakeClock) *Tracker {
	return NewTracker(WithProber(p), WithClock(clock.Now), WithCacheTTL(2*time.Second), WithProbeTimeout(100*time.Millisecond))
}

func TestTrackerCachesWithinTTL(t *testing.T) {
	p := newFakeProber()
	p.set(100, true, 1000)
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)
	ctx := context.Background()

	assert.Equal(t, models.LivenessAlive, tr.Liveness(ctx, 100))
	assert.Equal(t, models.LivenessAlive, tr.Liveness(ctx, 100))
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.calls))

	clock.Advance(3 * time.Second)
	p.set(100, false, 0)
	assert.Equal(t, models.LivenessDead, tr.Liveness(ctx, 100))
	assert.EqualValues(t, 2, atomic.LoadInt32(&p.calls))
}

func TestTrackerPIDReuse(t *testing.T) {
	p := newFakeProber()
	p.set(200, true, 1000)
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)
	ctx := context.Background()

	assert.True(t, tr.IsSameProcess(ctx, 200, 1000))
	// the pid number is in use, but by a process that started later
	assert.False(t, tr.IsSameProcess(ctx, 200, 900))
	assert.Equal(t, models.LivenessDead, tr.SameProcess(ctx, 200, 900))
	assert.True(t, tr.IsAlive(ctx, 200))
	// no expectation skips the guard
	assert.True(t, tr.IsSameProcess(ctx, 200, 0))
}

func TestTrackerDeadInvalidatesStartTime(t *testing.T) {
	p := newFakeProber()
	p.set(300, true, 1000)
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)
	ctx := context.Background()

	assert.EqualValues(t, 1000, tr.StartTimeOf(ctx, 300))

	clock.Advance(3 * time.Second)
	p.set(300, false, 0)
	rec, l := tr.Probe(ctx, 300)
	assert.Equal(t, models.LivenessDead, l)
	assert.Zero(t, rec.ProcStarted)
	assert.Zero(t, tr.StartTimeOf(ctx, 300))
}

func TestTrackerForget(t *testing.T) {
	p := newFakeProber()
	p.set(400, true, 1)
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)
	ctx := context.Background()

	tr.Liveness(ctx, 400)
	tr.Forget(400)
	tr.Liveness(ctx, 400)
	assert.EqualValues(t, 2, atomic.LoadInt32(&p.calls))
}

func TestTrackerTimeoutIsUnknownAndUncached(t *testing.T) {
	p := newFakeProber()
	p.set(500, true, 1)
	p.delay = 300 * time.Millisecond
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)

	start := time.Now()
	assert.Equal(t, models.LivenessUnknown, tr.Liveness(context.Background(), 500))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	// unknown still counts as alive for lock takeover purposes
	p.mu.Lock()
	p.delay = 0
	p.mu.Unlock()
	assert.True(t, tr.IsAlive(context.Background(), 500))
	_, ok := tr.cached(500)
	assert.True(t, ok, "successful probe after a timeout is cached")
}

func TestTrackerSingleflight(t *testing.T) {
	p := newFakeProber()
	p.set(600, true, 1)
	p.delay = 50 * time.Millisecond
	clock := &fakeClock{now: time.Unix(5000, 0)}
	tr := newTestTracker(p, clock)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, models.LivenessAlive, tr.Liveness(context.Background(), 600))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.calls))
}

func TestTrackerInvalidPID(t *testing.T) {
	tr := NewTracker(WithProber(newFakeProber()))
	assert.Equal(t, models.LivenessDead, tr.Liveness(context.Background(), 0))
	assert.False(t, tr.IsAlive(context.Background(), -1))
}

func TestSystemProberSelf(t *testing.T) {
	assert.True(t, IsProcessAlive(os.Getpid()))
	assert.False(t, IsProcessAlive(0))

	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("start time unsupported")
	}
	started, err := StartTime(os.Getpid())
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), started, 600)

	tr := NewTracker()
	assert.True(t, tr.IsSameProcess(context.Background(), os.Getpid(), started))
	assert.False(t, tr.IsSameProcess(context.Background(), os.Getpid(), started-3600))
}
