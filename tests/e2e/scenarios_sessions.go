package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/harness"
)

const e2eSession = "e2e-session-1"

func sessionPayload(ctx *harness.Context, hookEvent string) map[string]interface{} {
	return map[string]interface{}{
		"session_id":      e2eSession,
		"cwd":             ctx.GetString("project"),
		"hook_event_name": hookEvent,
	}
}

// HookLockFallbackScenario drives a session through hooks with no daemon
// running, so the lock directory carries it.
func HookLockFallbackScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-hook-lock-fallback",
		Description: "Without a daemon, session_start writes a lock that sessions reads back and session_end removes.",
		Tags:        []string{"hud", "hook", "lock"},
		Steps: []harness.Step{
			harness.NewStep("Setup config", setupHud),
			harness.NewStep("Send session-start", func(ctx *harness.Context) error {
				return sendHook(ctx, "session-start", sessionPayload(ctx, "SessionStart"))
			}),
			harness.NewStep("Lock exists for the session", func(ctx *harness.Context) error {
				out, code, err := hud(ctx, "locks", "list", "--json")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "locks list should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(out, e2eSession, "lock should name the session"); err != nil {
					return err
				}
				return assert.Contains(out, `"liveness": "alive"`, "session pid is this test process")
			}),
			harness.NewStep("Sessions are read from locks", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "sessions", "--json")
				if err != nil {
					return err
				}
				var views []map[string]interface{}
				if err := json.Unmarshal([]byte(out), &views); err != nil {
					return fmt.Errorf("sessions output is not JSON: %w", err)
				}
				if err := assert.Equal(1, len(views), "one session expected"); err != nil {
					return err
				}
				if err := assert.Equal("ready", views[0]["effective_state"], "lock sessions read as ready"); err != nil {
					return err
				}
				return assert.Equal(ctx.GetString("project"), views[0]["cwd"], "session cwd is the project")
			}),
			harness.NewStep("Route without daemon is unavailable", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "route", ctx.GetString("project"), "--json")
				if err != nil {
					return err
				}
				return assert.Contains(out, "DAEMON_UNAVAILABLE", "routing needs the daemon")
			}),
			harness.NewStep("Send session-end", func(ctx *harness.Context) error {
				return sendHook(ctx, "session-end", sessionPayload(ctx, "SessionEnd"))
			}),
			harness.NewStep("Lock is gone", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "locks", "list", "--json")
				if err != nil {
					return err
				}
				return assert.NotContains(out, e2eSession, "session-end should release the lock")
			}),
		},
	}
}

// HookDroppedWithoutStrictScenario checks that a broken payload never fails
// the assistant's hook.
func HookDroppedWithoutStrictScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-hook-invalid-payload",
		Description: "An invalid payload exits 0 by default and 1 with --strict.",
		Tags:        []string{"hud", "hook"},
		Steps: []harness.Step{
			harness.NewStep("Setup config", setupHud),
			harness.NewStep("Send a payload that is not JSON", func(ctx *harness.Context) error {
				path := ctx.GetString("payload_dir") + "/broken.json"
				if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
					return err
				}

				_, code, err := hud(ctx, "hook", "stop", "--input", path)
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "hook failures are swallowed"); err != nil {
					return err
				}

				_, code, err = hud(ctx, "hook", "stop", "--input", path, "--strict")
				if err != nil {
					return err
				}
				return assert.Equal(1, code, "--strict reports the failure")
			}),
		},
	}
}

// DaemonIngestScenario sends hooks to a running daemon and queries the result.
func DaemonIngestScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-daemon-ingest",
		Description: "Hooks reach the daemon, sessions and projects reflect them, and routing explains its decision.",
		Tags:        []string{"hud", "daemon"},
		Steps: []harness.Step{
			harness.NewStep("Setup config", setupHud),
			harness.NewStep("Start daemon", startDaemon),
			harness.NewStep("Daemon reports healthy", func(ctx *harness.Context) error {
				out, code, err := hud(ctx, "daemon", "status", "--json")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "status should succeed"); err != nil {
					return err
				}
				return assert.Contains(out, `"protocol_version"`, "health should carry the protocol version")
			}),
			harness.NewStep("Send session-start and a prompt", func(ctx *harness.Context) error {
				if err := sendHook(ctx, "session-start", sessionPayload(ctx, "SessionStart")); err != nil {
					return err
				}
				return sendHook(ctx, "user-prompt-submit", sessionPayload(ctx, "UserPromptSubmit"))
			}),
			harness.NewStep("Session is working", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "sessions", "--json")
				if err != nil {
					return err
				}
				if err := assert.Contains(out, e2eSession, "session should be listed"); err != nil {
					return err
				}
				return assert.Contains(out, `"effective_state": "working"`, "prompt submit means working")
			}),
			harness.NewStep("Project aggregates the session", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "projects", ctx.GetString("project"), "--json")
				if err != nil {
					return err
				}
				return assert.Contains(out, `"state": "working"`, "project state follows its session")
			}),
			harness.NewStep("No lock without the fallback", func(ctx *harness.Context) error {
				out, _, err := hud(ctx, "locks", "list", "--json")
				if err != nil {
					return err
				}
				return assert.NotContains(out, e2eSession, "the daemon path writes no locks")
			}),
			harness.NewStep("Route explains its decision", func(ctx *harness.Context) error {
				out, code, err := hud(ctx, "route", ctx.GetString("project"), "--diagnostics", "--json")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "diagnostics should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(out, `"decision"`, "diagnostics wrap the decision"); err != nil {
					return err
				}
				return assert.Contains(out, `"mode": "enabled"`, "default routing mode is reported")
			}),
			harness.NewStep("Stop daemon", stopDaemon),
		},
	}
}

// DaemonReplayScenario restarts the daemon and checks that state survives
// through the event log.
func DaemonReplayScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-daemon-replay",
		Description: "State rebuilt from the event log matches what the daemon served before it stopped.",
		Tags:        []string{"hud", "daemon", "eventlog"},
		Steps: []harness.Step{
			harness.NewStep("Setup config", setupHud),
			harness.NewStep("Start daemon", startDaemon),
			harness.NewStep("Send session-start and a prompt", func(ctx *harness.Context) error {
				if err := sendHook(ctx, "session-start", sessionPayload(ctx, "SessionStart")); err != nil {
					return err
				}
				return sendHook(ctx, "user-prompt-submit", sessionPayload(ctx, "UserPromptSubmit"))
			}),
			harness.NewStep("Stop daemon", stopDaemon),
			harness.NewStep("Offline replay recovers the session", func(ctx *harness.Context) error {
				out, code, err := hud(ctx, "replay", "--json")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "replay should succeed"); err != nil {
					return err
				}
				var res struct {
					Events   int `json:"events"`
					Sessions []struct {
						SessionID string `json:"session_id"`
						State     string `json:"state"`
					} `json:"sessions"`
				}
				if err := json.Unmarshal([]byte(out), &res); err != nil {
					return fmt.Errorf("replay output is not JSON: %w", err)
				}
				if err := assert.Equal(2, res.Events, "both events were logged"); err != nil {
					return err
				}
				if err := assert.Equal(1, len(res.Sessions), "one session recovered"); err != nil {
					return err
				}
				return assert.Equal("working", res.Sessions[0].State, "last state is working")
			}),
			harness.NewStep("Restarted daemon serves the same state", func(ctx *harness.Context) error {
				if err := startDaemon(ctx); err != nil {
					return err
				}
				defer stopDaemon(ctx)

				out, _, err := hud(ctx, "daemon", "status", "--json")
				if err != nil {
					return err
				}
				return assert.Contains(out, `"last_seq": `+strconv.Itoa(2), "replayed seq survives restart")
			}),
		},
	}
}
