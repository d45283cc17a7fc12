// Package pidfile provides PID file management for the hud daemon.
//
// The file holds "<pid> <start time>" so a pid reused by an unrelated
// process is not mistaken for a running daemon.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/petekp/claude-hud-sub008/pkg/process"
)

// Entry is the parsed content of a pid file.
type Entry struct {
	PID         int
	ProcStarted int64
}

// probes are swapped in tests
var (
	isAlive   = process.IsProcessAlive
	startTime = process.StartTime
)

// Acquire writes the current PID to the file.
// It returns an error if another instance is already running.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if entry, err := Read(path); err == nil {
		if running(entry) {
			return fmt.Errorf("daemon already running with PID %d", entry.PID)
		}
		// Process is dead or the pid was reused, cleanup stale file
		_ = os.Remove(path)
	}

	pid := os.Getpid()
	started, _ := startTime(pid)
	content := strconv.Itoa(pid)
	if started > 0 {
		content += " " + strconv.FormatInt(started, 10)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	return nil
}

// Release removes the PID file if it still belongs to this process.
func Release(path string) error {
	entry, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if entry.PID != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read parses the pid file.
func Read(path string) (Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return Entry{}, fmt.Errorf("pid file %s is empty", path)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Entry{}, fmt.Errorf("pid file %s: %w", path, err)
	}
	entry := Entry{PID: pid}
	if len(fields) > 1 {
		entry.ProcStarted, _ = strconv.ParseInt(fields[1], 10, 64)
	}
	return entry, nil
}

// IsRunning checks if the daemon described by the pidfile is active.
func IsRunning(path string) (bool, int, error) {
	entry, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return running(entry), entry.PID, nil
}

func running(e Entry) bool {
	if e.PID <= 0 || !isAlive(e.PID) {
		return false
	}
	if e.ProcStarted == 0 {
		return true
	}
	started, err := startTime(e.PID)
	if err != nil || started == 0 {
		return true
	}
	return started == e.ProcStarted
}
