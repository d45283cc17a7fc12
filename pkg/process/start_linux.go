//go:build linux

package process

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// clockTicks is USER_HZ, fixed at 100 on every Linux ABI Go supports.
const clockTicks = 100

var (
	bootTimeOnce sync.Once
	bootTime     int64
	bootTimeErr  error
)

// StartTime returns the unix second at which pid started.
func StartTime(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	ticks, err := parseStatStartTicks(data)
	if err != nil {
		return 0, fmt.Errorf("pid %d: %w", pid, err)
	}

	bootTimeOnce.Do(func() { bootTime, bootTimeErr = readBootTime() })
	if bootTimeErr != nil {
		return 0, bootTimeErr
	}
	return bootTime + ticks/clockTicks, nil
}

// parseStatStartTicks extracts field 22 (starttime). The comm field may
// contain spaces and parentheses, so fields are counted after the last ')'.
func parseStatStartTicks(stat []byte) (int64, error) {
	end := bytes.LastIndexByte(stat, ')')
	if end < 0 {
		return 0, fmt.Errorf("malformed stat")
	}
	fields := strings.Fields(string(stat[end+1:]))
	// fields[0] is field 3 (state)
	const idx = 22 - 3
	if len(fields) <= idx {
		return 0, fmt.Errorf("stat has %d fields", len(fields)+2)
	}
	return strconv.ParseInt(fields[idx], 10, 64)
}

func readBootTime() (int64, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "btime ") {
			return strconv.ParseInt(strings.TrimSpace(line[len("btime "):]), 10, 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("btime not found in /proc/stat")
}
