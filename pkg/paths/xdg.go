// Package paths provides XDG-compliant path resolution for hud.
//
// Resolution order:
// 1. HUD_HOME (portable root) → $HUD_HOME/{config,data,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/hud
// 3. Platform defaults → ~/.config/hud, ~/.local/state/hud, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "hud"

// base resolves one XDG root. sub is the HUD_HOME subdirectory, env the XDG
// variable and fallback the path under the user's home directory.
func base(sub, env string, fallback ...string) string {
	if hudHome := os.Getenv("HUD_HOME"); hudHome != "" {
		return filepath.Join(hudHome, sub)
	}
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the configuration directory holding hud.yml / hud.toml.
func ConfigDir() string {
	return base("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the state directory. Used for the event log, locks and logs.
func StateDir() string {
	return base("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the cache directory.
func CacheDir() string {
	return base("cache", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if hudHome := os.Getenv("HUD_HOME"); hudHome != "" {
		return filepath.Join(hudHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "hud.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "hud.pid")
}

// EventLogPath returns the default sqlite event log location.
func EventLogPath() string {
	return filepath.Join(StateDir(), "events.db")
}

// LocksDir returns the directory holding fallback session locks.
func LocksDir() string {
	return filepath.Join(StateDir(), "locks")
}

// LogsDir returns the directory for component log files.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// EnsureDirs creates all hud directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		CacheDir(),
		RuntimeDir(),
		LocksDir(),
		LogsDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
