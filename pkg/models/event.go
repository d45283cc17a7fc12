package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the closed set of events the daemon accepts.
type EventType string

const (
	EventSessionStart      EventType = "session_start"
	EventUserPromptSubmit  EventType = "user_prompt_submit"
	EventPreToolUse        EventType = "pre_tool_use"
	EventPostToolUse       EventType = "post_tool_use"
	EventPermissionRequest EventType = "permission_request"
	EventNotification      EventType = "notification"
	EventPreCompact        EventType = "pre_compact"
	EventStop              EventType = "stop"
	EventTaskCompleted     EventType = "task_completed"
	EventSessionEnd        EventType = "session_end"
	EventShellCwd          EventType = "shell_cwd"
)

// NotificationIdlePrompt is the notification type sent when the assistant
// waits for the user.
const NotificationIdlePrompt = "idle_prompt"

var eventMethods = map[EventType]string{
	EventSessionStart:      "Event.SessionStart",
	EventUserPromptSubmit:  "Event.UserPromptSubmit",
	EventPreToolUse:        "Event.PreToolUse",
	EventPostToolUse:       "Event.PostToolUse",
	EventPermissionRequest: "Event.PermissionRequest",
	EventNotification:      "Event.Notification",
	EventPreCompact:        "Event.PreCompact",
	EventStop:              "Event.Stop",
	EventTaskCompleted:     "Event.TaskCompleted",
	EventSessionEnd:        "Event.SessionEnd",
	EventShellCwd:          "Event.ShellCwd",
}

var methodEvents = func() map[string]EventType {
	m := make(map[string]EventType, len(eventMethods))
	for t, method := range eventMethods {
		m[method] = t
	}
	return m
}()

// Method returns the IPC ingest method for the event type.
func (t EventType) Method() string { return eventMethods[t] }

// Valid reports whether t is a member of the closed event set.
func (t EventType) Valid() bool {
	_, ok := eventMethods[t]
	return ok
}

// EventTypeForMethod maps an ingest method such as "Event.Stop" to its type.
func EventTypeForMethod(method string) (EventType, bool) {
	t, ok := methodEvents[method]
	return t, ok
}

// Payload carries the event-specific fields. Unused fields stay empty.
type Payload struct {
	NotificationType string `json:"notification_type,omitempty"`
	StopHookActive   bool   `json:"stop_hook_active,omitempty"`
	// AgentID is set when a delegated sub-agent produced the event.
	AgentID        string `json:"agent_id,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	ProjectDir     string `json:"project_dir,omitempty"`
	TTY            string `json:"tty,omitempty"`
	ParentApp      string `json:"parent_app,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	// ProcStarted is the unix start time of PID, used as the PID-reuse guard.
	ProcStarted int64 `json:"proc_started,omitempty"`
}

// Value stores the payload as a JSON text column. An empty payload is NULL.
func (p Payload) Value() (driver.Value, error) {
	if p == (Payload{}) {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(b), nil
}

func (p *Payload) Scan(value interface{}) error {
	*p = Payload{}
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Payload", value)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, p); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// Event is one immutable observation. EventID makes ingest idempotent.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"event_type"`
	SessionID  string    `json:"session_id,omitempty"`
	PID        int       `json:"pid"`
	RecordedAt time.Time `json:"recorded_at"`
	CWD        string    `json:"cwd,omitempty"`
	Payload    Payload   `json:"payload"`
}

// Key returns the session key the event targets.
func (e Event) Key() SessionKey {
	return SessionKey{SessionID: e.SessionID, PID: e.PID}
}

// Validate checks the fields every event of its type must carry.
func (e Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.PID <= 0 {
		return fmt.Errorf("pid must be positive, got %d", e.PID)
	}
	if e.RecordedAt.IsZero() {
		return fmt.Errorf("recorded_at is required")
	}
	if e.Type == EventShellCwd {
		if e.CWD == "" {
			return fmt.Errorf("cwd is required for %s", e.Type)
		}
		return nil
	}
	if e.SessionID == "" {
		return fmt.Errorf("session_id is required for %s", e.Type)
	}
	return nil
}

// IngestResult is the acknowledgment returned for an ingest method.
type IngestResult struct {
	EventID   string `json:"event_id"`
	Seq       int64  `json:"seq,omitempty"`
	Accepted  bool   `json:"accepted"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate"`
	Stale     bool   `json:"stale"`
	// SkippedReason explains why an accepted event did not change state.
	SkippedReason string `json:"skipped_reason,omitempty"`
}
