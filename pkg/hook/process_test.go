package hook

import (
	"context"
	"fmt"
	"testing"

	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/stretchr/testify/assert"
)

type staticLister []process.Info

func (l staticLister) List(context.Context) ([]process.Info, error) { return l, nil }

type failingLister struct{}

func (failingLister) List(context.Context) ([]process.Info, error) {
	return nil, fmt.Errorf("ps failed")
}

var known = []string{"Ghostty", "kitty"}

func TestResolveProcessSkipsShellWrapper(t *testing.T) {
	procs := staticLister{
		{PID: 100, PPID: 1, Args: "/Applications/Ghostty.app/Contents/MacOS/ghostty"},
		{PID: 200, PPID: 100, TTY: "/dev/ttys003", Args: "-zsh"},
		{PID: 300, PPID: 200, TTY: "/dev/ttys003", Args: "claude"},
		{PID: 400, PPID: 300, TTY: "/dev/ttys003", Args: "/bin/sh -c hud hook"},
	}

	proc := ResolveProcess(context.Background(), procs, 400, known)
	assert.Equal(t, 300, proc.PID)
	assert.Equal(t, "/dev/ttys003", proc.TTY)
	assert.Equal(t, "Ghostty", proc.ParentApp)
}

func TestResolveProcessDirectParent(t *testing.T) {
	procs := staticLister{
		{PID: 10, PPID: 1, Args: "kitty"},
		{PID: 20, PPID: 10, TTY: "/dev/pts/1", Args: "node claude"},
	}
	proc := ResolveProcess(context.Background(), procs, 20, known)
	assert.Equal(t, 20, proc.PID)
	assert.Equal(t, "kitty", proc.ParentApp)
}

func TestResolveProcessWithoutListing(t *testing.T) {
	proc := ResolveProcess(context.Background(), failingLister{}, 55, known)
	assert.Equal(t, 55, proc.PID)
	assert.Empty(t, proc.TTY)
	assert.Empty(t, proc.ParentApp)
}

func TestResolveShellKeepsShellPID(t *testing.T) {
	procs := staticLister{
		{PID: 100, PPID: 1, Args: "kitty"},
		{PID: 200, PPID: 100, TTY: "/dev/pts/4", Args: "-zsh"},
	}
	proc := ResolveShell(context.Background(), procs, 200, known)
	assert.Equal(t, 200, proc.PID)
	assert.Equal(t, "/dev/pts/4", proc.TTY)
	assert.Equal(t, "kitty", proc.ParentApp)
}
