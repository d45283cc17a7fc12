package lock

import (
	"context"
	"sync"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// fakeLiveness reports pids in alive as live, and treats a start time that
// differs from started[pid] as a reused pid.
type fakeLiveness struct {
	mu      sync.Mutex
	alive   map[int]bool
	started map[int]int64
}

func newFakeLiveness() *fakeLiveness {
	return &fakeLiveness{alive: map[int]bool{}, started: map[int]int64{}}
}

func (f *fakeLiveness) set(pid int, alive bool, started int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = alive
	f.started[pid] = started
}

func (f *fakeLiveness) SameProcess(_ context.Context, pid int, expected int64) models.Liveness {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return models.LivenessDead
	}
	if expected != 0 && f.started[pid] != 0 && f.started[pid] != expected {
		return models.LivenessDead
	}
	return models.LivenessAlive
}
