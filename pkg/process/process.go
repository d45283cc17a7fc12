// Package process answers "is this pid the process we think it is".
package process

import (
	"strings"

	"golang.org/x/sys/unix"
)

// IsProcessAlive sends signal 0 to pid. EPERM means the process exists but
// belongs to another user, which still counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// NormalizeTTY returns tty as a /dev path, or "" for processes without one.
// ps prints "ttys004" or "pts/3"; hooks report "/dev/ttys004".
func NormalizeTTY(tty string) string {
	tty = strings.TrimSpace(tty)
	switch tty {
	case "", "?", "??", "-":
		return ""
	}
	if strings.HasPrefix(tty, "/dev/") {
		return tty
	}
	return "/dev/" + tty
}
