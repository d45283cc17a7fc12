package reducer

import (
	"fmt"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type eventBuilder struct {
	n int
}

func (b *eventBuilder) event(typ models.EventType, sid string, pid int, at time.Duration) models.Event {
	b.n++
	return models.Event{
		EventID:    fmt.Sprintf("ev-%d", b.n),
		Type:       typ,
		SessionID:  sid,
		PID:        pid,
		RecordedAt: t0.Add(at),
		CWD:        "/code/a",
	}
}

func TestEndToEndScenario(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	key := models.SessionKey{SessionID: "s1", PID: 100}

	steps := []struct {
		event models.Event
		want  models.SessionState
	}{
		{b.event(models.EventSessionStart, "s1", 100, 0), models.StateReady},
		{b.event(models.EventUserPromptSubmit, "s1", 100, time.Second), models.StateWorking},
		{b.event(models.EventPermissionRequest, "s1", 100, 2*time.Second), models.StateWaiting},
	}
	var got []models.SessionState
	for _, step := range steps {
		out := s.Apply(step.event)
		require.True(t, out.Applied)
		rec := s.Sessions[key]
		got = append(got, Effective(rec, step.event.RecordedAt, models.LivenessAlive))
	}
	assert.Equal(t, []models.SessionState{models.StateReady, models.StateWorking, models.StateWaiting}, got)

	before := s.Sessions[key]
	stop := b.event(models.EventStop, "s1", 100, 3*time.Second)
	stop.Payload.StopHookActive = true
	out := s.Apply(stop)
	assert.False(t, out.Applied)
	assert.Equal(t, SkipStopHookActive, out.SkippedReason)
	assert.Equal(t, before, s.Sessions[key])
	assert.Equal(t, models.StateWaiting, Effective(s.Sessions[key], stop.RecordedAt, models.LivenessAlive))
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name       string
		setup      []models.EventType
		event      models.EventType
		payload    models.Payload
		wantState  models.SessionState
		wantReason models.ReadyReason
		wantTools  int
		wantSkip   string
	}{
		{name: "prompt", setup: []models.EventType{models.EventSessionStart}, event: models.EventUserPromptSubmit, wantState: models.StateWorking},
		{name: "pre tool", setup: []models.EventType{models.EventSessionStart}, event: models.EventPreToolUse, wantState: models.StateWorking, wantTools: 1},
		{name: "post tool floors at zero", setup: []models.EventType{models.EventSessionStart}, event: models.EventPostToolUse, wantState: models.StateWorking},
		{name: "permission", setup: []models.EventType{models.EventSessionStart}, event: models.EventPermissionRequest, wantState: models.StateWaiting},
		{name: "compact", setup: []models.EventType{models.EventSessionStart}, event: models.EventPreCompact, wantState: models.StateCompacting},
		{
			name:       "idle prompt without tools",
			setup:      []models.EventType{models.EventSessionStart, models.EventUserPromptSubmit},
			event:      models.EventNotification,
			payload:    models.Payload{NotificationType: models.NotificationIdlePrompt},
			wantState:  models.StateReady,
			wantReason: models.ReadyIdlePrompt,
		},
		{
			name:      "idle prompt with tools in flight",
			setup:     []models.EventType{models.EventSessionStart, models.EventPreToolUse},
			event:     models.EventNotification,
			payload:   models.Payload{NotificationType: models.NotificationIdlePrompt},
			wantState: models.StateWaiting,
			wantTools: 1,
		},
		{
			name:      "other notification is a heartbeat",
			setup:     []models.EventType{models.EventSessionStart, models.EventUserPromptSubmit},
			event:     models.EventNotification,
			payload:   models.Payload{NotificationType: "auth_success"},
			wantState: models.StateWorking,
		},
		{
			name:       "stop",
			setup:      []models.EventType{models.EventSessionStart, models.EventPreToolUse},
			event:      models.EventStop,
			wantState:  models.StateReady,
			wantReason: models.ReadyStopGate,
		},
		{
			name:      "stop while compacting",
			setup:     []models.EventType{models.EventSessionStart, models.EventPreCompact},
			event:     models.EventStop,
			wantState: models.StateCompacting,
			wantSkip:  SkipCompacting,
		},
		{
			name:      "stop from delegated agent",
			setup:     []models.EventType{models.EventSessionStart, models.EventUserPromptSubmit},
			event:     models.EventStop,
			payload:   models.Payload{AgentID: "agent-7"},
			wantState: models.StateWorking,
			wantSkip:  SkipDelegatedAgent,
		},
		{
			name:       "task completed",
			setup:      []models.EventType{models.EventSessionStart, models.EventPreToolUse},
			event:      models.EventTaskCompleted,
			wantState:  models.StateReady,
			wantReason: models.ReadyTaskCompleted,
		},
		{
			name:      "sub-agent task completed keeps working",
			setup:     []models.EventType{models.EventSessionStart, models.EventUserPromptSubmit},
			event:     models.EventTaskCompleted,
			payload:   models.Payload{AgentID: "agent-7"},
			wantState: models.StateWorking,
		},
		{
			name:       "restart of active session is skipped",
			setup:      []models.EventType{models.EventSessionStart},
			event:      models.EventSessionStart,
			wantState:  models.StateReady,
			wantReason: models.ReadySessionStart,
			wantSkip:   SkipAlreadyActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b eventBuilder
			s := New(Options{})
			for i, typ := range tt.setup {
				require.True(t, s.Apply(b.event(typ, "s1", 100, time.Duration(i)*time.Second)).Applied)
			}
			e := b.event(tt.event, "s1", 100, 10*time.Second)
			e.Payload = tt.payload
			out := s.Apply(e)

			assert.Equal(t, tt.wantSkip, out.SkippedReason)
			assert.Equal(t, tt.wantSkip == "", out.Applied)
			rec := s.Sessions[models.SessionKey{SessionID: "s1", PID: 100}]
			assert.Equal(t, tt.wantState, rec.State)
			assert.Equal(t, tt.wantReason, rec.ReadyReason)
			assert.Equal(t, tt.wantTools, rec.ToolsInFlight)
		})
	}
}

func TestStateChangedAtOnlyOnTransition(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	key := models.SessionKey{SessionID: "s1", PID: 100}

	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	out := s.Apply(b.event(models.EventUserPromptSubmit, "s1", 100, time.Second))
	assert.True(t, out.Transitioned)
	assert.Equal(t, t0.Add(time.Second), s.Sessions[key].StateChangedAt)

	out = s.Apply(b.event(models.EventPreToolUse, "s1", 100, 5*time.Second))
	assert.False(t, out.Transitioned)

	rec := s.Sessions[key]
	assert.Equal(t, t0.Add(time.Second), rec.StateChangedAt)
	assert.Equal(t, t0.Add(5*time.Second), rec.UpdatedAt)
	require.NotNil(t, rec.LastActivityAt)
	assert.Equal(t, t0.Add(5*time.Second), *rec.LastActivityAt)
	assert.Equal(t, models.EventPreToolUse, rec.LastEvent)
}

func TestDuplicateEventIsIgnored(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))

	pre := b.event(models.EventPreToolUse, "s1", 100, time.Second)
	require.True(t, s.Apply(pre).Applied)
	out := s.Apply(pre)

	assert.True(t, out.Duplicate)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, s.Sessions[pre.Key()].ToolsInFlight)
}

func TestStaleEventIsSkipped(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	s.Apply(b.event(models.EventPermissionRequest, "s1", 100, 10*time.Second))

	late := b.event(models.EventUserPromptSubmit, "s1", 100, 5*time.Second)
	out := s.Apply(late)

	assert.True(t, out.Stale)
	assert.False(t, out.Applied)
	rec := s.Sessions[late.Key()]
	assert.Equal(t, models.StateWaiting, rec.State)
	assert.Equal(t, t0.Add(10*time.Second), rec.UpdatedAt)

	// a second delivery of the stale event is a duplicate, not stale again
	assert.True(t, s.Apply(late).Duplicate)
}

func TestOutOfOrderAcrossSessions(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	s.Apply(b.event(models.EventSessionStart, "s1", 100, 10*time.Second))
	out := s.Apply(b.event(models.EventSessionStart, "s2", 200, 2*time.Second))

	assert.True(t, out.Applied)
	assert.Len(t, s.Sessions, 2)
}

func TestImplicitRecordCreation(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	e := b.event(models.EventPreToolUse, "late", 300, 0)
	e.Payload.ProjectDir = "/code/b"

	out := s.Apply(e)
	require.True(t, out.Applied)
	require.NotNil(t, out.Record)
	assert.Equal(t, models.StateWorking, out.Record.State)
	assert.Equal(t, "/code/b", out.Record.ProjectPath())
	assert.Equal(t, 1, out.Record.ToolsInFlight)
}

func TestSkippedStopDoesNotCreateRecord(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	e := b.event(models.EventStop, "s9", 900, 0)
	e.Payload.StopHookActive = true

	s.Apply(e)
	assert.Empty(t, s.Sessions)
}

func TestSessionEndTombstone(t *testing.T) {
	var b eventBuilder
	s := New(Options{TombstoneTTL: time.Minute})
	key := models.SessionKey{SessionID: "s1", PID: 100}

	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	out := s.Apply(b.event(models.EventSessionEnd, "s1", 100, 10*time.Second))
	require.True(t, out.Applied)
	assert.NotContains(t, s.Sessions, key)
	require.Contains(t, s.Tombstones, "s1")
	assert.Equal(t, t0.Add(70*time.Second), s.Tombstones["s1"].ExpiresAt)

	// late events for the ended session are blocked
	late := s.Apply(b.event(models.EventPostToolUse, "s1", 100, 11*time.Second))
	assert.Equal(t, SkipTombstoned, late.SkippedReason)
	assert.NotContains(t, s.Sessions, key)

	// a start recorded before the end is also blocked
	early := s.Apply(b.event(models.EventSessionStart, "s1", 100, 5*time.Second))
	assert.Equal(t, SkipTombstoned, early.SkippedReason)

	// a genuine restart clears the tombstone
	restart := s.Apply(b.event(models.EventSessionStart, "s1", 100, 20*time.Second))
	assert.True(t, restart.Applied)
	assert.NotContains(t, s.Tombstones, "s1")
	assert.Equal(t, models.StateReady, s.Sessions[key].State)
}

func TestSessionEndRemovesEveryPidOfSession(t *testing.T) {
	var b eventBuilder
	s := New(Options{TombstoneTTL: time.Minute})

	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	s.Apply(b.event(models.EventSessionStart, "s1", 200, time.Second))
	s.Apply(b.event(models.EventSessionStart, "s2", 300, time.Second))
	require.Len(t, s.Sessions, 3)

	out := s.Apply(b.event(models.EventSessionEnd, "s1", 200, 2*time.Second))
	require.True(t, out.Applied)
	assert.True(t, out.Transitioned)
	assert.NotContains(t, s.Sessions, models.SessionKey{SessionID: "s1", PID: 100})
	assert.NotContains(t, s.Sessions, models.SessionKey{SessionID: "s1", PID: 200})
	assert.Contains(t, s.Sessions, models.SessionKey{SessionID: "s2", PID: 300})

	// the other pid cannot be revived while the tombstone stands
	late := s.Apply(b.event(models.EventUserPromptSubmit, "s1", 100, 3*time.Second))
	assert.Equal(t, SkipTombstoned, late.SkippedReason)
	assert.Len(t, s.Sessions, 1)
}

func TestSessionEndWithoutRecordStillTombstones(t *testing.T) {
	var b eventBuilder
	s := New(Options{})

	out := s.Apply(b.event(models.EventSessionEnd, "s1", 100, 0))
	assert.True(t, out.Applied)
	assert.False(t, out.Transitioned)
	assert.Contains(t, s.Tombstones, "s1")
}

func TestTombstoneExpires(t *testing.T) {
	var b eventBuilder
	s := New(Options{TombstoneTTL: time.Minute})

	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	s.Apply(b.event(models.EventSessionEnd, "s1", 100, time.Second))
	s.Apply(b.event(models.EventSessionStart, "other", 200, 2*time.Minute))

	assert.Empty(t, s.Tombstones)
	out := s.Apply(b.event(models.EventUserPromptSubmit, "s1", 100, 3*time.Minute))
	assert.True(t, out.Applied)
}

func TestShellCwd(t *testing.T) {
	var b eventBuilder
	s := New(Options{})
	key := models.SessionKey{SessionID: "s1", PID: 100}
	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))
	before := s.Sessions[key]

	e := b.event(models.EventShellCwd, "s1", 100, 5*time.Second)
	e.CWD = "/code/elsewhere"
	e.Payload.TTY = "/dev/ttys003"
	out := s.Apply(e)
	require.True(t, out.Applied)

	rec := s.Sessions[key]
	assert.Equal(t, "/code/elsewhere", rec.CWD)
	assert.Equal(t, before.State, rec.State)
	assert.Equal(t, before.UpdatedAt, rec.UpdatedAt)
	assert.Equal(t, before.StateChangedAt, rec.StateChangedAt)

	shell := s.Shells[100]
	assert.Equal(t, "/code/elsewhere", shell.CWD)
	assert.Equal(t, "/dev/ttys003", shell.TTY)

	older := b.event(models.EventShellCwd, "", 100, time.Second)
	older.CWD = "/tmp"
	assert.True(t, s.Apply(older).Stale)
	assert.Equal(t, "/code/elsewhere", s.Shells[100].CWD)
}

func TestActivityRing(t *testing.T) {
	var b eventBuilder
	s := New(Options{ActivityLimit: 3})
	s.Apply(b.event(models.EventSessionStart, "s1", 100, 0))

	for i := 1; i <= 5; i++ {
		e := b.event(models.EventPostToolUse, "s1", 100, time.Duration(i)*time.Second)
		e.Payload.FilePath = fmt.Sprintf("/code/a/f%d.go", i)
		e.Payload.ToolName = "Edit"
		s.Apply(e)
	}
	// no file path, no entry
	s.Apply(b.event(models.EventPostToolUse, "s1", 100, 6*time.Second))

	require.Len(t, s.Activity, 3)
	assert.Equal(t, "/code/a/f3.go", s.Activity[0].FilePath)
	assert.Equal(t, "/code/a/f5.go", s.Activity[2].FilePath)
	assert.Equal(t, "/code/a", s.Activity[2].ProjectPath)
}

func TestReplayMatchesIncremental(t *testing.T) {
	var b eventBuilder
	events := []models.Event{
		b.event(models.EventSessionStart, "s1", 100, 0),
		b.event(models.EventSessionStart, "s2", 200, time.Second),
		b.event(models.EventUserPromptSubmit, "s1", 100, 2*time.Second),
		b.event(models.EventPreToolUse, "s1", 100, 3*time.Second),
		b.event(models.EventPostToolUse, "s2", 200, 4*time.Second),
		b.event(models.EventUserPromptSubmit, "s1", 100, time.Second), // stale
		b.event(models.EventPreCompact, "s2", 200, 5*time.Second),
		b.event(models.EventStop, "s2", 200, 6*time.Second), // skipped: compacting
		b.event(models.EventSessionEnd, "s1", 100, 7*time.Second),
		b.event(models.EventPreToolUse, "s1", 100, 8*time.Second), // tombstoned
		b.event(models.EventShellCwd, "", 555, 9*time.Second),
	}

	incremental := New(Options{})
	for _, e := range events {
		incremental.Apply(e)
		// at-least-once delivery
		incremental.Apply(e)
	}

	replayed := New(Options{})
	for _, e := range events {
		replayed.Apply(e)
	}

	assert.Equal(t, incremental.Sessions, replayed.Sessions)
	assert.Equal(t, incremental.Tombstones, replayed.Tombstones)
	assert.Equal(t, incremental.Shells, replayed.Shells)
	assert.Equal(t, incremental.Activity, replayed.Activity)
	assert.Len(t, replayed.Sessions, 1)
}
