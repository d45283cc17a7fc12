package models

import (
	"fmt"
	"time"
)

// SessionState is the raw or effective state of one session.
type SessionState string

const (
	StateWorking    SessionState = "working"
	StateReady      SessionState = "ready"
	StateWaiting    SessionState = "waiting"
	StateCompacting SessionState = "compacting"
	StateIdle       SessionState = "idle"
)

// ReadyReason records which transition put a session into Ready.
type ReadyReason string

const (
	ReadySessionStart  ReadyReason = "session_start"
	ReadyStopGate      ReadyReason = "stop_gate"
	ReadyIdlePrompt    ReadyReason = "idle_prompt"
	ReadyTaskCompleted ReadyReason = "task_completed"
)

// SessionKey uniquely identifies a SessionRecord.
type SessionKey struct {
	SessionID string
	PID       int
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s-%d", k.SessionID, k.PID)
}

// SessionRecord is the materialized state of one (session_id, pid).
type SessionRecord struct {
	SessionID      string       `json:"session_id"`
	PID            int          `json:"pid"`
	State          SessionState `json:"state"`
	CWD            string       `json:"cwd"`
	UpdatedAt      time.Time    `json:"updated_at"`
	StateChangedAt time.Time    `json:"state_changed_at"`
	ReadyReason    ReadyReason  `json:"ready_reason,omitempty"`
	LastEvent      EventType    `json:"last_event,omitempty"`
	ToolsInFlight  int          `json:"tools_in_flight"`
	LastActivityAt *time.Time   `json:"last_activity_at,omitempty"`
	ProjectDir     string       `json:"project_dir,omitempty"`
	ProcStarted    int64        `json:"proc_started,omitempty"`
}

func (r SessionRecord) Key() SessionKey {
	return SessionKey{SessionID: r.SessionID, PID: r.PID}
}

// ProjectPath is the directory the session is attributed to.
func (r SessionRecord) ProjectPath() string {
	if r.ProjectDir != "" {
		return r.ProjectDir
	}
	return r.CWD
}

// Liveness is the result of a process probe.
type Liveness string

const (
	LivenessAlive   Liveness = "alive"
	LivenessDead    Liveness = "dead"
	LivenessUnknown Liveness = "unknown"
)

// SessionView is a record plus the state computed at read time.
type SessionView struct {
	SessionRecord
	EffectiveState SessionState `json:"effective_state"`
	Liveness       Liveness     `json:"liveness"`
}

// Tombstone blocks late events for a session that has ended.
type Tombstone struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ShellRecord is the last known cwd of an interactive shell.
type ShellRecord struct {
	PID       int       `json:"pid"`
	CWD       string    `json:"cwd"`
	TTY       string    `json:"tty,omitempty"`
	ParentApp string    `json:"parent_app,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivityEntry records a file touched by a tool.
type ActivityEntry struct {
	SessionID   string    `json:"session_id"`
	PID         int       `json:"pid"`
	ProjectPath string    `json:"project_path"`
	FilePath    string    `json:"file_path"`
	ToolName    string    `json:"tool_name,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ProjectState aggregates the sessions attributed to one project.
type ProjectState struct {
	ProjectPath string        `json:"project_path"`
	State       SessionState  `json:"state"`
	Sessions    []SessionView `json:"sessions"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
