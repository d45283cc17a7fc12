package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func start(id, sid string, pid int, cwd string) models.Event {
	return models.Event{EventID: id, Type: models.EventSessionStart, SessionID: sid, PID: pid, RecordedAt: t0, CWD: cwd}
}

func TestApplyTracksSeqAndSorts(t *testing.T) {
	s := New(reducer.Options{})
	s.Apply(1, start("e1", "b", 2, "/code/b"))
	s.Apply(2, start("e2", "a", 1, "/code/a"))
	out := s.Apply(3, start("e2", "a", 1, "/code/a"))

	assert.True(t, out.Duplicate)
	assert.Equal(t, int64(3), s.LastSeq())
	sessions := s.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].SessionID)
}

func TestSubscribersSeeAppliedEvents(t *testing.T) {
	s := New(reducer.Options{})
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.Apply(1, start("e1", "a", 1, "/code/a"))
	select {
	case u := <-ch:
		assert.Equal(t, UpdateSessions, u.Type)
	case <-time.After(time.Second):
		t.Fatal("no update")
	}
}

func TestTmuxFailureKeepsLastGoodSnapshot(t *testing.T) {
	s := New(reducer.Options{})
	good := TmuxSnapshot{
		Sessions:   []models.TmuxSession{{Name: "a", Path: "/code/a"}},
		CapturedAt: t0,
	}
	s.ApplyUpdate(Update{Type: UpdateTmux, Payload: good})
	s.ApplyUpdate(Update{Type: UpdateTmux, Payload: TmuxSnapshot{Err: "no server running"}})

	snap := s.Tmux()
	assert.Len(t, snap.Sessions, 1)
	assert.Equal(t, t0, snap.CapturedAt)
	assert.Equal(t, "no server running", snap.Err)
}

func TestTerminalsAreCopied(t *testing.T) {
	s := New(reducer.Options{})
	s.ApplyUpdate(Update{Type: UpdateTerminals, Payload: TerminalSnapshot{
		Owners: map[string]models.TerminalOwner{"/dev/ttys001": {TTY: "/dev/ttys001", App: "Ghostty"}},
	}})

	snap := s.Snapshot()
	snap.Terminals.Owners["/dev/ttys002"] = models.TerminalOwner{}
	assert.Len(t, s.Terminals().Owners, 1)
}

func TestActivityFilter(t *testing.T) {
	s := New(reducer.Options{})
	s.Apply(1, start("e1", "a", 1, "/code/a"))
	s.Apply(2, start("e2", "ab", 2, "/code/ab"))
	for i, sid := range []string{"a", "ab", "a"} {
		pid := 1
		cwd := "/code/a"
		if sid == "ab" {
			pid, cwd = 2, "/code/ab"
		}
		s.Apply(int64(3+i), models.Event{
			EventID:    fmt.Sprintf("post-%d", i),
			Type:       models.EventPostToolUse,
			SessionID:  sid,
			PID:        pid,
			RecordedAt: t0.Add(time.Duration(i+1) * time.Second),
			CWD:        cwd,
			Payload:    models.Payload{FilePath: cwd + "/main.go"},
		})
	}

	all := s.Activity("", 0)
	assert.Len(t, all, 3)
	assert.Equal(t, t0.Add(3*time.Second), all[0].RecordedAt)

	onlyA := s.Activity("/code/a", 0)
	assert.Len(t, onlyA, 2)
	assert.Len(t, s.Activity("/code/a", 1), 1)
}

func TestConcurrentReadsDuringIngest(t *testing.T) {
	s := New(reducer.Options{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Apply(int64(i+1), start(fmt.Sprintf("e%d", i), "s", i+1, "/code/a"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()
	assert.Len(t, s.Sessions(), 200)
}

func TestGroupByProject(t *testing.T) {
	view := func(path string, state models.SessionState, at time.Duration) models.SessionView {
		return models.SessionView{
			SessionRecord:  models.SessionRecord{CWD: path, UpdatedAt: t0.Add(at)},
			EffectiveState: state,
		}
	}
	views := []models.SessionView{
		view("/code/a", models.StateReady, 0),
		view("/code/a", models.StateWaiting, time.Second),
		view("/code/b", models.StateWorking, 0),
	}

	all := GroupByProject(views, nil)
	require.Len(t, all, 2)
	assert.Equal(t, "/code/a", all[0].ProjectPath)
	assert.Equal(t, models.StateWaiting, all[0].State)
	assert.Equal(t, t0.Add(time.Second), all[0].UpdatedAt)
	assert.Len(t, all[0].Sessions, 2)

	picked := GroupByProject(views, []string{"/code/c", "/code/b"})
	require.Len(t, picked, 2)
	assert.Equal(t, models.StateIdle, picked[0].State)
	assert.Equal(t, models.StateWorking, picked[1].State)
}
