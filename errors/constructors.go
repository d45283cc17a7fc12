package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *HudError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *HudError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// ProtocolMismatch reports a request framed with an unsupported protocol version.
func ProtocolMismatch(got, want int) *HudError {
	return New(ErrCodeProtocolVersion,
		fmt.Sprintf("unsupported protocol version %d (daemon speaks %d)", got, want)).
		WithDetail("got", got).
		WithDetail("want", want)
}

// UnknownMethod reports an IPC method the daemon does not implement.
func UnknownMethod(method string) *HudError {
	return New(ErrCodeUnknownMethod, fmt.Sprintf("unknown method %q", method)).
		WithDetail("method", method)
}

// InvalidInput creates an input validation error
func InvalidInput(reason string) *HudError {
	return New(ErrCodeInvalidInput, reason)
}

// Timeout reports an operation that did not complete within its bound.
func Timeout(op string, after time.Duration) *HudError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", op, after)).
		WithDetail("operation", op).
		WithDetail("timeout", after.String())
}

// DaemonUnavailable wraps a transport failure talking to the daemon.
func DaemonUnavailable(socket string, err error) *HudError {
	return Wrap(err, ErrCodeDaemonUnavailable, "daemon is not reachable").
		WithDetail("socket", socket)
}

// LockExists is returned when an atomic lock create finds the name taken.
func LockExists(path string) *HudError {
	return New(ErrCodeLockExists, fmt.Sprintf("lock already exists: %s", path)).
		WithDetail("lock", path)
}

// LockHeld is returned when a lock belongs to a live process.
func LockHeld(path string, pid int) *HudError {
	return New(ErrCodeLockHeld, fmt.Sprintf("lock %s is held by live pid %d", path, pid)).
		WithDetail("lock", path).
		WithDetail("pid", pid)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *HudError {
	hudErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	if exitErr, ok := err.(*exec.ExitError); ok {
		hudErr = hudErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return hudErr
}
