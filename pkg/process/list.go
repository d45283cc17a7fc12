package process

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/petekp/claude-hud-sub008/command"
)

// Info is one row of the process table.
type Info struct {
	PID  int
	PPID int
	// TTY is normalized to a /dev path, empty when the process has none.
	TTY  string
	Args string
}

// Command returns the base name of the executable.
func (i Info) Command() string {
	fields := strings.Fields(i.Args)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

// Lister enumerates processes.
type Lister interface {
	List(ctx context.Context) ([]Info, error)
}

// PSLister lists processes with ps, which behaves the same on macOS and Linux
// for the columns used here.
type PSLister struct {
	Builder *command.SafeBuilder
}

// NewPSLister returns a lister using a real executor.
func NewPSLister() *PSLister {
	return &PSLister{Builder: command.NewSafeBuilder()}
}

func (l *PSLister) List(ctx context.Context) ([]Info, error) {
	cmd, err := l.Builder.Build("ps", "axo", "pid=,ppid=,tty=,args=")
	if err != nil {
		return nil, err
	}
	out, err := cmd.Output(ctx)
	if err != nil {
		return nil, err
	}
	return ParsePS(out), nil
}

// ParsePS parses "pid ppid tty args..." rows. Malformed rows are skipped.
func ParsePS(out []byte) []Info {
	var procs []Info
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		procs = append(procs, Info{
			PID:  pid,
			PPID: ppid,
			TTY:  NormalizeTTY(fields[2]),
			Args: strings.Join(fields[3:], " "),
		})
	}
	return procs
}

// Table indexes a process listing by pid.
type Table map[int]Info

func NewTable(procs []Info) Table {
	t := make(Table, len(procs))
	for _, p := range procs {
		t[p.PID] = p
	}
	return t
}

// Ancestors returns pid's parent chain, nearest first, excluding pid itself.
func (t Table) Ancestors(pid int) []Info {
	var chain []Info
	seen := map[int]bool{pid: true}
	cur, ok := t[pid]
	for ok && cur.PPID > 1 && !seen[cur.PPID] {
		seen[cur.PPID] = true
		cur, ok = t[cur.PPID]
		if ok {
			chain = append(chain, cur)
		}
	}
	return chain
}
