// Package reducer holds the session state machine. Apply is deterministic:
// it reads only the event and the current state, never the wall clock or
// process table, so replaying the event log rebuilds identical state.
package reducer

import (
	"time"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

const (
	DefaultTombstoneTTL  = 10 * time.Minute
	DefaultActivityLimit = 500
)

// Skip reasons reported for accepted events that did not change state.
const (
	SkipDuplicate      = "duplicate"
	SkipStale          = "stale"
	SkipTombstoned     = "tombstoned"
	SkipAlreadyActive  = "already_active"
	SkipCompacting     = "compacting"
	SkipStopHookActive = "stop_hook_active"
	SkipDelegatedAgent = "delegated_agent"
)

// Options tunes retention. Both must be identical for incremental and
// replayed state to match.
type Options struct {
	TombstoneTTL  time.Duration
	ActivityLimit int
}

func (o Options) withDefaults() Options {
	if o.TombstoneTTL <= 0 {
		o.TombstoneTTL = DefaultTombstoneTTL
	}
	if o.ActivityLimit <= 0 {
		o.ActivityLimit = DefaultActivityLimit
	}
	return o
}

// State is the materialized view of the event log.
type State struct {
	Sessions   map[models.SessionKey]models.SessionRecord
	Tombstones map[string]models.Tombstone
	Shells     map[int]models.ShellRecord
	Activity   []models.ActivityEntry
	Seen       map[string]struct{}
	// Clock is the newest recorded_at applied so far. Tombstones expire
	// against it rather than against wall time.
	Clock time.Time

	opts Options
}

// New returns empty state.
func New(opts Options) *State {
	return &State{
		Sessions:   make(map[models.SessionKey]models.SessionRecord),
		Tombstones: make(map[string]models.Tombstone),
		Shells:     make(map[int]models.ShellRecord),
		Seen:       make(map[string]struct{}),
		opts:       opts.withDefaults(),
	}
}

// Outcome reports what Apply did with one event.
type Outcome struct {
	Applied       bool
	Duplicate     bool
	Stale         bool
	SkippedReason string
	// Transitioned is true when the raw state of the record changed.
	Transitioned bool
	Record       *models.SessionRecord
}

// Apply folds e into s.
func (s *State) Apply(e models.Event) Outcome {
	if _, seen := s.Seen[e.EventID]; seen {
		return Outcome{Duplicate: true, SkippedReason: SkipDuplicate}
	}
	s.Seen[e.EventID] = struct{}{}

	if e.RecordedAt.After(s.Clock) {
		s.Clock = e.RecordedAt
		s.pruneTombstones()
	}

	if e.Type == models.EventShellCwd {
		return s.applyShellCwd(e)
	}

	if t, ok := s.Tombstones[e.SessionID]; ok && e.RecordedAt.Before(t.ExpiresAt) {
		if e.Type == models.EventSessionStart && e.RecordedAt.After(t.CreatedAt) {
			delete(s.Tombstones, e.SessionID)
		} else {
			return Outcome{SkippedReason: SkipTombstoned}
		}
	}

	key := e.Key()
	rec, exists := s.Sessions[key]
	if exists && e.RecordedAt.Before(rec.UpdatedAt) {
		return Outcome{Stale: true, SkippedReason: SkipStale}
	}

	switch e.Type {
	case models.EventSessionEnd:
		// The tombstone blocks every pid of the session, so every record
		// of it goes too.
		ended := false
		for k := range s.Sessions {
			if k.SessionID == e.SessionID {
				delete(s.Sessions, k)
				ended = true
			}
		}
		s.Tombstones[e.SessionID] = models.Tombstone{
			SessionID: e.SessionID,
			CreatedAt: e.RecordedAt,
			ExpiresAt: e.RecordedAt.Add(s.opts.TombstoneTTL),
		}
		return Outcome{Applied: true, Transitioned: ended}

	case models.EventSessionStart:
		if exists {
			return Outcome{SkippedReason: SkipAlreadyActive}
		}
		rec = models.SessionRecord{SessionID: e.SessionID, PID: e.PID}
		next := transition{state: models.StateReady, reason: models.ReadySessionStart, resetTools: true}
		return s.commit(rec, e, next)

	case models.EventStop:
		if exists && rec.State == models.StateCompacting {
			return Outcome{SkippedReason: SkipCompacting}
		}
		if e.Payload.StopHookActive {
			return Outcome{SkippedReason: SkipStopHookActive}
		}
		if e.Payload.AgentID != "" {
			return Outcome{SkippedReason: SkipDelegatedAgent}
		}
	}

	if !exists {
		// Hooks installed mid-session: the first event creates the record.
		rec = models.SessionRecord{SessionID: e.SessionID, PID: e.PID}
	}
	return s.commit(rec, e, nextState(rec, e))
}

type transition struct {
	state      models.SessionState
	reason     models.ReadyReason
	resetTools bool
	toolDelta  int
	// heartbeat keeps the current state.
	heartbeat bool
}

func nextState(rec models.SessionRecord, e models.Event) transition {
	switch e.Type {
	case models.EventUserPromptSubmit:
		return transition{state: models.StateWorking, resetTools: true}
	case models.EventPreToolUse:
		return transition{state: models.StateWorking, toolDelta: 1}
	case models.EventPostToolUse:
		return transition{state: models.StateWorking, toolDelta: -1}
	case models.EventPermissionRequest:
		return transition{state: models.StateWaiting}
	case models.EventPreCompact:
		return transition{state: models.StateCompacting}
	case models.EventNotification:
		if e.Payload.NotificationType != models.NotificationIdlePrompt {
			return transition{heartbeat: true}
		}
		if rec.ToolsInFlight > 0 {
			return transition{state: models.StateWaiting}
		}
		return transition{state: models.StateReady, reason: models.ReadyIdlePrompt}
	case models.EventStop:
		return transition{state: models.StateReady, reason: models.ReadyStopGate, resetTools: true}
	case models.EventTaskCompleted:
		if e.Payload.AgentID != "" {
			// A sub-agent finishing does not end the main turn. The
			// heartbeat still records TaskCompleted as LastEvent, which
			// arms the AutoReadyAfter guard in Effective.
			return transition{heartbeat: true}
		}
		return transition{state: models.StateReady, reason: models.ReadyTaskCompleted, resetTools: true}
	}
	return transition{heartbeat: true}
}

func (s *State) commit(rec models.SessionRecord, e models.Event, next transition) Outcome {
	prev := rec.State

	switch {
	case next.resetTools:
		rec.ToolsInFlight = 0
	case next.toolDelta != 0:
		rec.ToolsInFlight += next.toolDelta
		if rec.ToolsInFlight < 0 {
			rec.ToolsInFlight = 0
		}
	}

	if !next.heartbeat {
		rec.State = next.state
		if next.state == models.StateReady {
			rec.ReadyReason = next.reason
		} else {
			rec.ReadyReason = ""
		}
	} else if rec.State == "" {
		// A heartbeat creating a record has nothing to keep.
		rec.State = models.StateWorking
	}

	transitioned := rec.State != prev
	if transitioned {
		rec.StateChangedAt = e.RecordedAt
	}

	rec.UpdatedAt = e.RecordedAt
	rec.LastEvent = e.Type
	at := e.RecordedAt
	rec.LastActivityAt = &at
	if e.CWD != "" {
		rec.CWD = e.CWD
	}
	if e.Payload.ProjectDir != "" {
		rec.ProjectDir = e.Payload.ProjectDir
	}
	if e.Payload.ProcStarted != 0 {
		rec.ProcStarted = e.Payload.ProcStarted
	}

	s.Sessions[rec.Key()] = rec

	if e.Type == models.EventPostToolUse && e.Payload.FilePath != "" {
		s.appendActivity(models.ActivityEntry{
			SessionID:   rec.SessionID,
			PID:         rec.PID,
			ProjectPath: rec.ProjectPath(),
			FilePath:    e.Payload.FilePath,
			ToolName:    e.Payload.ToolName,
			RecordedAt:  e.RecordedAt,
		})
	}

	out := rec
	return Outcome{Applied: true, Transitioned: transitioned, Record: &out}
}

func (s *State) applyShellCwd(e models.Event) Outcome {
	if prev, ok := s.Shells[e.PID]; ok && e.RecordedAt.Before(prev.UpdatedAt) {
		return Outcome{Stale: true, SkippedReason: SkipStale}
	}
	s.Shells[e.PID] = models.ShellRecord{
		PID:       e.PID,
		CWD:       e.CWD,
		TTY:       e.Payload.TTY,
		ParentApp: e.Payload.ParentApp,
		UpdatedAt: e.RecordedAt,
	}

	// cwd only: state, updated_at and state_changed_at are untouched
	if e.SessionID != "" {
		if rec, ok := s.Sessions[e.Key()]; ok {
			rec.CWD = e.CWD
			s.Sessions[rec.Key()] = rec
			return Outcome{Applied: true, Record: &rec}
		}
	}
	return Outcome{Applied: true}
}

func (s *State) appendActivity(entry models.ActivityEntry) {
	s.Activity = append(s.Activity, entry)
	if over := len(s.Activity) - s.opts.ActivityLimit; over > 0 {
		s.Activity = append(s.Activity[:0:0], s.Activity[over:]...)
	}
}

func (s *State) pruneTombstones() {
	for id, t := range s.Tombstones {
		if !s.Clock.Before(t.ExpiresAt) {
			delete(s.Tombstones, id)
		}
	}
}
