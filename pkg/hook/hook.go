// Package hook turns the JSON an assistant writes to a hook's stdin into a
// daemon event.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// MaxInputBytes bounds how much stdin is read.
const MaxInputBytes = 4 << 20

// Input is the hook payload. Unknown fields are ignored.
type Input struct {
	SessionID        string                 `json:"session_id"`
	TranscriptPath   string                 `json:"transcript_path"`
	CWD              string                 `json:"cwd"`
	HookEventName    string                 `json:"hook_event_name"`
	ToolName         string                 `json:"tool_name"`
	ToolInput        map[string]interface{} `json:"tool_input"`
	NotificationType string                 `json:"notification_type"`
	Message          string                 `json:"message"`
	StopHookActive   bool                   `json:"stop_hook_active"`
	AgentID          string                 `json:"agent_id"`
}

// Parse reads one hook payload. Empty input yields a zero Input.
func Parse(r io.Reader) (Input, error) {
	var in Input
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes))
	if err != nil {
		return in, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read hook input")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, errors.Wrap(err, errors.ErrCodeInvalidInput, "hook input is not valid JSON")
	}
	return in, nil
}

var hookNames = map[string]models.EventType{
	"SessionStart":      models.EventSessionStart,
	"UserPromptSubmit":  models.EventUserPromptSubmit,
	"PreToolUse":        models.EventPreToolUse,
	"PostToolUse":       models.EventPostToolUse,
	"PermissionRequest": models.EventPermissionRequest,
	"Notification":      models.EventNotification,
	"PreCompact":        models.EventPreCompact,
	"Stop":              models.EventStop,
	"SubagentStop":      models.EventTaskCompleted,
	"TaskCompleted":     models.EventTaskCompleted,
	"SessionEnd":        models.EventSessionEnd,
}

// EventType maps a hook name ("PreToolUse", "pre-tool-use" or
// "pre_tool_use") to its event type.
func EventType(name string) (models.EventType, bool) {
	if t, ok := hookNames[name]; ok {
		return t, true
	}
	t := models.EventType(strings.ReplaceAll(strings.ToLower(name), "-", "_"))
	return t, t.Valid()
}

// Process describes the assistant process the hook runs under.
type Process struct {
	PID         int
	ProcStarted int64
	TTY         string
	ParentApp   string
	// ProjectDir is the project root the assistant reports, if any.
	ProjectDir string
}

// Event builds the event for in. When typ is empty the hook name in the
// payload decides.
func (in Input) Event(typ models.EventType, proc Process, now time.Time) (models.Event, error) {
	if typ == "" {
		t, ok := EventType(in.HookEventName)
		if !ok {
			return models.Event{}, errors.InvalidInput(fmt.Sprintf("unknown hook event %q", in.HookEventName))
		}
		typ = t
	}

	ev := models.Event{
		EventID:    uuid.NewString(),
		Type:       typ,
		SessionID:  in.SessionID,
		PID:        proc.PID,
		RecordedAt: now.UTC(),
		CWD:        in.CWD,
		Payload: models.Payload{
			StopHookActive: in.StopHookActive,
			AgentID:        in.AgentID,
			ToolName:       in.ToolName,
			FilePath:       FilePath(in.ToolInput),
			ProjectDir:     proc.ProjectDir,
			TTY:            proc.TTY,
			ParentApp:      proc.ParentApp,
			TranscriptPath: in.TranscriptPath,
			ProcStarted:    proc.ProcStarted,
		},
	}
	if typ == models.EventNotification {
		ev.Payload.NotificationType = notificationType(in)
	}
	if err := ev.Validate(); err != nil {
		return ev, errors.InvalidInput(err.Error())
	}
	return ev, nil
}

// FilePath returns the file a tool call touched, if its input names one.
func FilePath(toolInput map[string]interface{}) string {
	for _, key := range []string{"file_path", "notebook_path", "path"} {
		if v, ok := toolInput[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func notificationType(in Input) string {
	if in.NotificationType != "" {
		return in.NotificationType
	}
	// older assistants only send the message text
	if strings.Contains(strings.ToLower(in.Message), "waiting for your input") {
		return models.NotificationIdlePrompt
	}
	return ""
}

// ShellCwd builds the event a shell prompt hook sends after a directory
// change. proc.PID is the shell itself.
func ShellCwd(cwd string, proc Process, now time.Time) (models.Event, error) {
	ev := models.Event{
		EventID:    uuid.NewString(),
		Type:       models.EventShellCwd,
		PID:        proc.PID,
		RecordedAt: now.UTC(),
		CWD:        cwd,
		Payload: models.Payload{
			TTY:         proc.TTY,
			ParentApp:   proc.ParentApp,
			ProcStarted: proc.ProcStarted,
		},
	}
	if err := ev.Validate(); err != nil {
		return ev, errors.InvalidInput(err.Error())
	}
	return ev, nil
}
