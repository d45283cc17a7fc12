package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// FindProjectBinary finds the hud binary under test.
// The binary is expected on PATH, e.g. built into ./bin with ./bin prepended.
func FindProjectBinary() (string, error) {
	path, err := exec.LookPath("hud")
	if err != nil {
		return "", fmt.Errorf("could not find 'hud' binary in PATH. build ./cmd/hud into a directory on PATH")
	}
	return path, nil
}

// setupHud writes a config that keeps the socket, event log and locks inside
// the scenario and stores its path under "config". Unix socket paths are
// short, so the socket goes into its own temp dir.
func setupHud(ctx *harness.Context) error {
	stateDir := ctx.NewDir("hud-state")
	runDir, err := os.MkdirTemp("", "hud-e2e")
	if err != nil {
		return err
	}

	socket := filepath.Join(runDir, "hud.sock")
	configPath := filepath.Join(ctx.NewDir("hud-config"), "hud.yml")
	configYAML := fmt.Sprintf(`version: "1.0"
daemon:
  socket_path: %s
  event_log_path: %s
lock:
  dir: %s
  poll_interval: 100ms
extensions:
  logging:
    file:
      path: %s
`, socket, filepath.Join(stateDir, "events.db"), filepath.Join(stateDir, "locks"), filepath.Join(stateDir, "hud.log"))
	if err := fs.WriteString(configPath, configYAML); err != nil {
		return err
	}

	ctx.Set("config", configPath)
	ctx.Set("socket", socket)
	ctx.Set("run_dir", runDir)
	ctx.Set("state_dir", stateDir)
	ctx.Set("project", ctx.NewDir("project-api"))
	ctx.Set("payload_dir", ctx.NewDir("payloads"))
	return nil
}

// hud runs the binary with the scenario's config.
func hud(ctx *harness.Context, args ...string) (stdout string, exitCode int, err error) {
	bin, err := FindProjectBinary()
	if err != nil {
		return "", 0, err
	}
	full := append([]string{"--config", ctx.GetString("config")}, args...)
	cmd := ctx.Command(bin, full...)
	result := cmd.Run()
	ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
	return result.Stdout, result.ExitCode, nil
}

// writePayload writes a hook payload file and returns its path.
func writePayload(ctx *harness.Context, name string, payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	path := filepath.Join(ctx.GetString("payload_dir"), name+".json")
	return path, fs.WriteFile(path, data)
}

// sendHook delivers a payload the way the assistant would, attributed to this
// process so liveness probes see a live session.
func sendHook(ctx *harness.Context, event string, payload map[string]interface{}) error {
	path, err := writePayload(ctx, event, payload)
	if err != nil {
		return err
	}
	_, code, err := hud(ctx, "hook", event, "--strict", "--input", path, "--pid", strconv.Itoa(os.Getpid()))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("hud hook %s exited %d", event, code)
	}
	return nil
}

// startDaemon runs `hud daemon start` in the background and waits for its
// socket.
func startDaemon(ctx *harness.Context) error {
	bin, err := FindProjectBinary()
	if err != nil {
		return err
	}
	daemon := exec.Command(bin, "--config", ctx.GetString("config"), "daemon", "start")
	daemon.Env = append(os.Environ(), "HUD_HOME="+ctx.GetString("run_dir"))
	if err := daemon.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	ctx.Set("daemon", daemon)

	socket := ctx.GetString("socket")
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = daemon.Process.Kill()
	return fmt.Errorf("daemon socket %s did not appear", socket)
}

// stopDaemon sends SIGTERM and waits for a clean exit.
func stopDaemon(ctx *harness.Context) error {
	daemon, ok := ctx.Get("daemon").(*exec.Cmd)
	if !ok || daemon.Process == nil {
		return nil
	}
	if err := daemon.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- daemon.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		_ = daemon.Process.Kill()
		return fmt.Errorf("daemon did not exit after SIGTERM")
	}
}
