package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerHints(t *testing.T) {
	h := NewErrorHandler(false)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"daemon down", errors.DaemonUnavailable("/tmp/hud.sock", fmt.Errorf("refused")), "/tmp/hud.sock"},
		{"protocol", errors.ProtocolMismatch(2, 1), "got 2, want 1"},
		{"lock held", errors.LockHeld("/l", 77), "pid 77"},
		{"plain error", fmt.Errorf("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hint := h.Hint(tt.err)
			if tt.want == "" {
				assert.Empty(t, hint)
				return
			}
			assert.Contains(t, hint, tt.want)
		})
	}
}

func TestHandleWritesToCommandStderr(t *testing.T) {
	var stderr bytes.Buffer
	cmd := &cobra.Command{Use: "hud"}
	cmd.SetErr(&stderr)

	NewErrorHandler(true).Handle(cmd, errors.Timeout("GetSessions", time.Second))

	out := stderr.String()
	assert.Contains(t, out, "GetSessions timed out after 1s")
	assert.Contains(t, out, "hud --help")
	assert.Contains(t, out, `"code": "TIMEOUT"`)
}

func TestExecuteReturnsExitCode(t *testing.T) {
	root := NewStandardCommand("hud", "test")
	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.AddCommand(&cobra.Command{
		Use:  "fail",
		RunE: func(*cobra.Command, []string) error { return errors.InvalidInput("bad path") },
	})
	root.AddCommand(&cobra.Command{
		Use:  "ok",
		RunE: func(*cobra.Command, []string) error { return nil },
	})

	root.SetArgs([]string{"ok"})
	assert.Equal(t, 0, Execute(root))

	root.SetArgs([]string{"fail"})
	assert.Equal(t, 1, Execute(root))
	assert.Contains(t, stderr.String(), "bad path")
}

func TestStandardFlagsReachEnvironment(t *testing.T) {
	t.Setenv("HUD_CONFIG", "")
	t.Setenv("HUD_LOG_LEVEL", "")

	root := NewStandardCommand("hud", "test")
	var seen CommandOptions
	root.AddCommand(&cobra.Command{
		Use: "show",
		RunE: func(cmd *cobra.Command, args []string) error {
			seen = GetOptions(cmd)
			return nil
		},
	})
	root.SetArgs([]string{"show", "-v", "--json", "-c", "/etc/hud.yml"})
	require.NoError(t, root.Execute())

	assert.Equal(t, CommandOptions{ConfigFile: "/etc/hud.yml", Verbose: true, JSONOutput: true}, seen)
	assert.Equal(t, "debug", getenv("HUD_LOG_LEVEL"))
	assert.Equal(t, "/etc/hud.yml", getenv("HUD_CONFIG"))
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("hud", "Session state daemon")
	sub := &cobra.Command{
		Use:   "route <path>",
		Short: "Explain where an activation would go",
		Long: `Explain where an activation would go.

Examples:
  # explain routing for the current project
  hud route .`,
		Run: func(*cobra.Command, []string) {},
	}
	sub.Flags().String("workspace", "", "Workspace id")
	root.AddCommand(sub)
	ApplyStyledHelp(root)

	var out bytes.Buffer
	renderHelp(&out, sub, 60)
	help := out.String()
	assert.Contains(t, help, "HUD ROUTE")
	assert.Contains(t, help, "EXAMPLES")
	assert.Contains(t, help, "hud route .")
	assert.Contains(t, help, "--workspace")

	out.Reset()
	renderHelp(&out, root, 60)
	assert.Contains(t, out.String(), "COMMANDS")
	assert.Contains(t, out.String(), "route")
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	assert.Equal(t, []string{"one two", "three", "four five"}, lines)
	assert.Equal(t, []string{"  indented line stays whole"}, wrapText("  indented line stays whole", 5))
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", Age(time.Time{}, now))
	assert.Equal(t, "just now", Age(now, now))
	assert.Equal(t, "3 minutes ago", Age(now.Add(-3*time.Minute), now))
}

func TestShortIDAndHomeRelative(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.True(t, strings.HasPrefix(ShortID("0123456789abcdef"), "01234567"))
	assert.Equal(t, "~/code/a", HomeRelative("/home/me/code/a", "/home/me"))
	assert.Equal(t, "/home/meow", HomeRelative("/home/meow", "/home/me"))
}

func TestNewTableRendersRows(t *testing.T) {
	out := NewTable("PROJECT", "STATE").Row("/code/a", "working").String()
	assert.Contains(t, out, "PROJECT")
	assert.Contains(t, out, "/code/a")
}

func getenv(key string) string {
	v, _ := os.LookupEnv(key)
	return v
}
