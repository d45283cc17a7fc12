//go:build !linux && !darwin

package process

import "fmt"

// StartTime is not implemented on this platform; liveness falls back to the
// signal probe alone.
func StartTime(pid int) (int64, error) {
	return 0, fmt.Errorf("process start time unsupported on this platform")
}
