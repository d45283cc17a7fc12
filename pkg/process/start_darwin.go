//go:build darwin

package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StartTime returns the unix second at which pid started.
func StartTime(pid int) (int64, error) {
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil {
		return 0, err
	}
	if int(kp.Proc.P_pid) != pid {
		return 0, fmt.Errorf("pid %d: no such process", pid)
	}
	return kp.Proc.P_starttime.Sec, nil
}
