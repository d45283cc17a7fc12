// Package terminal works out which terminal application owns a tty by
// walking the process tree upward from the processes attached to it.
package terminal

import (
	"context"
	"sort"
	"strings"

	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
)

// DefaultKnown lists the terminal apps activation knows how to raise.
var DefaultKnown = []string{"Ghostty", "iTerm2", "Terminal", "Alacritty", "kitty", "WezTerm", "Warp"}

// Prober maps ttys to their owning terminal apps.
type Prober struct {
	lister process.Lister
	known  []string
}

func NewProber(lister process.Lister, known []string) *Prober {
	if len(known) == 0 {
		known = DefaultKnown
	}
	return &Prober{lister: lister, known: known}
}

// Owners resolves each tty in ttys. ttys with no known terminal ancestor
// (for example panes of a detached tmux server) are absent from the result.
func (p *Prober) Owners(ctx context.Context, ttys []string) (map[string]models.TerminalOwner, error) {
	procs, err := p.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	return OwnersFromTable(process.NewTable(procs), ttys, p.known), nil
}

// Probe lists processes once and returns the controlling tty of each pid in
// pids together with the owners of every tty involved (ttys plus the pid ttys).
func (p *Prober) Probe(ctx context.Context, pids []int, ttys []string) (map[string]models.TerminalOwner, map[int]string, error) {
	procs, err := p.lister.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	table := process.NewTable(procs)

	pidTTYs := make(map[int]string, len(pids))
	all := append([]string(nil), ttys...)
	for _, pid := range pids {
		if info, ok := table[pid]; ok && info.TTY != "" {
			pidTTYs[pid] = info.TTY
			all = append(all, info.TTY)
		}
	}
	return OwnersFromTable(table, all, p.known), pidTTYs, nil
}

// OwnersFromTable is Owners over an existing process table.
func OwnersFromTable(table process.Table, ttys []string, known []string) map[string]models.TerminalOwner {
	want := make(map[string]bool, len(ttys))
	for _, tty := range ttys {
		if tty = process.NormalizeTTY(tty); tty != "" {
			want[tty] = true
		}
	}

	// lowest pid first: the login shell is the most stable anchor
	byTTY := make(map[string][]int)
	for pid, info := range table {
		if want[info.TTY] {
			byTTY[info.TTY] = append(byTTY[info.TTY], pid)
		}
	}

	owners := make(map[string]models.TerminalOwner)
	for tty, pids := range byTTY {
		sort.Ints(pids)
		for _, pid := range pids {
			if owner, ok := ownerOf(table, pid, known); ok {
				owner.TTY = tty
				owners[tty] = owner
				break
			}
		}
	}
	return owners
}

func ownerOf(table process.Table, pid int, known []string) (models.TerminalOwner, bool) {
	for _, anc := range table.Ancestors(pid) {
		if app, ok := Match(anc.Args, known); ok {
			return models.TerminalOwner{App: app, AppPID: anc.PID}, true
		}
	}
	return models.TerminalOwner{}, false
}

// Match reports which known app a process command line belongs to. It
// accepts the executable base name ("kitty", "wezterm-gui") and macOS bundle
// paths ("/Applications/Ghostty.app/Contents/MacOS/ghostty").
func Match(args string, known []string) (string, bool) {
	info := process.Info{Args: args}
	base := strings.ToLower(info.Command())
	lowerArgs := strings.ToLower(args)
	for _, app := range known {
		name := strings.ToLower(app)
		if base == name || strings.HasPrefix(base, name+"-") {
			return app, true
		}
		if strings.Contains(lowerArgs, "/"+name+".app/") {
			return app, true
		}
	}
	return "", false
}

// Known returns the canonical spelling of app if it is a known terminal.
func Known(app string, known []string) (string, bool) {
	if app == "" {
		return "", false
	}
	for _, k := range known {
		if strings.EqualFold(k, app) {
			return k, true
		}
	}
	return "", false
}
