package hook

import (
	"context"

	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/petekp/claude-hud-sub008/pkg/terminal"
)

// shells wrap hook commands; the session is the process above them.
var shells = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true, "fish": true}

// ResolveProcess describes the assistant process that spawned the hook.
// parent is the hook's parent pid. A shell wrapper between the assistant and
// the hook is skipped. The tty and terminal app come from the process table;
// a listing failure leaves them empty.
func ResolveProcess(ctx context.Context, lister process.Lister, parent int, known []string) Process {
	return resolve(ctx, lister, parent, known, true)
}

// ResolveShell describes a shell that runs a prompt hook itself.
func ResolveShell(ctx context.Context, lister process.Lister, pid int, known []string) Process {
	return resolve(ctx, lister, pid, known, false)
}

func resolve(ctx context.Context, lister process.Lister, parent int, known []string, skipShell bool) Process {
	proc := Process{PID: parent}

	procs, err := lister.List(ctx)
	if err == nil {
		table := process.NewTable(procs)
		if info, ok := table[parent]; ok && skipShell && shells[info.Command()] && info.PPID > 1 {
			proc.PID = info.PPID
		}
		info := table[proc.PID]
		proc.TTY = info.TTY
		for _, anc := range table.Ancestors(proc.PID) {
			if app, ok := terminal.Match(anc.Args, known); ok {
				proc.ParentApp = app
				break
			}
		}
	}

	if started, err := process.StartTime(proc.PID); err == nil {
		proc.ProcStarted = started
	}
	return proc
}
