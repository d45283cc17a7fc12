package hook

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

func TestParseAndBuildEvent(t *testing.T) {
	in, err := Parse(strings.NewReader(`{
		"session_id": "abc",
		"cwd": "/code/api",
		"hook_event_name": "PostToolUse",
		"tool_name": "Edit",
		"tool_input": {"file_path": "/code/api/main.go", "old_string": "x"},
		"transcript_path": "/tmp/t.jsonl",
		"extra": true
	}`))
	require.NoError(t, err)

	ev, err := in.Event("", Process{PID: 42, ProcStarted: 7, TTY: "/dev/ttys001", ProjectDir: "/code/api"}, now)
	require.NoError(t, err)

	_, err = uuid.Parse(ev.EventID)
	assert.NoError(t, err)
	assert.Equal(t, models.EventPostToolUse, ev.Type)
	assert.Equal(t, "abc", ev.SessionID)
	assert.Equal(t, 42, ev.PID)
	assert.Equal(t, time.UTC, ev.RecordedAt.Location())
	assert.Equal(t, "/code/api/main.go", ev.Payload.FilePath)
	assert.Equal(t, "Edit", ev.Payload.ToolName)
	assert.Equal(t, int64(7), ev.Payload.ProcStarted)
	assert.Equal(t, "/code/api", ev.Payload.ProjectDir)
}

func TestEventIDsAreUnique(t *testing.T) {
	in := Input{SessionID: "abc", HookEventName: "Stop"}
	a, err := in.Event("", Process{PID: 1}, now)
	require.NoError(t, err)
	b, err := in.Event("", Process{PID: 1}, now)
	require.NoError(t, err)
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestEventType(t *testing.T) {
	tests := []struct {
		name string
		want models.EventType
		ok   bool
	}{
		{"SessionStart", models.EventSessionStart, true},
		{"SubagentStop", models.EventTaskCompleted, true},
		{"pre-tool-use", models.EventPreToolUse, true},
		{"shell_cwd", models.EventShellCwd, true},
		{"Bogus", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EventType(tt.name)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNotificationType(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"explicit", Input{NotificationType: "permission_prompt"}, "permission_prompt"},
		{"from message", Input{Message: "Claude is waiting for your input"}, models.NotificationIdlePrompt},
		{"other", Input{Message: "Claude needs your permission to use Bash"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.SessionID = "abc"
			ev, err := tt.in.Event(models.EventNotification, Process{PID: 1}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Payload.NotificationType)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	_, err := Parse(strings.NewReader("{nope"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	in, err := Parse(strings.NewReader("  "))
	require.NoError(t, err)
	_, err = in.Event("", Process{PID: 1}, now)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = Input{HookEventName: "Stop"}.Event("", Process{PID: 1}, now)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "session_id is required")
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, "/a.ipynb", FilePath(map[string]interface{}{"notebook_path": "/a.ipynb"}))
	assert.Equal(t, "", FilePath(map[string]interface{}{"command": "ls"}))
	assert.Equal(t, "", FilePath(nil))
}

func TestShellCwd(t *testing.T) {
	ev, err := ShellCwd("/code/api", Process{PID: 900, TTY: "/dev/ttys002", ParentApp: "Ghostty"}, now)
	require.NoError(t, err)
	assert.Equal(t, models.EventShellCwd, ev.Type)
	assert.Empty(t, ev.SessionID)
	assert.Equal(t, "/dev/ttys002", ev.Payload.TTY)

	_, err = ShellCwd("", Process{PID: 900}, now)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
