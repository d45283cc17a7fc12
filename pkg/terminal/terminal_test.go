package terminal

import (
	"context"
	"testing"

	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister []process.Info

func (l staticLister) List(ctx context.Context) ([]process.Info, error) { return l, nil }

var procs = staticLister{
	{PID: 500, PPID: 1, Args: "/Applications/Ghostty.app/Contents/MacOS/ghostty"},
	{PID: 501, PPID: 500, TTY: "/dev/ttys001", Args: "/usr/bin/login -flp me"},
	{PID: 502, PPID: 501, TTY: "/dev/ttys001", Args: "-zsh"},
	{PID: 600, PPID: 1, Args: "wezterm-gui start"},
	{PID: 601, PPID: 600, TTY: "/dev/ttys002", Args: "zsh"},
	{PID: 700, PPID: 1, Args: "tmux new -s api"},
	{PID: 701, PPID: 700, TTY: "/dev/ttys003", Args: "zsh"},
}

func TestOwners(t *testing.T) {
	p := NewProber(procs, nil)
	owners, err := p.Owners(context.Background(), []string{"ttys001", "/dev/ttys002", "/dev/ttys003", ""})
	require.NoError(t, err)

	require.Contains(t, owners, "/dev/ttys001")
	assert.Equal(t, "Ghostty", owners["/dev/ttys001"].App)
	assert.Equal(t, 500, owners["/dev/ttys001"].AppPID)
	assert.Equal(t, "WezTerm", owners["/dev/ttys002"].App)
	assert.NotContains(t, owners, "/dev/ttys003")
}

func TestMatch(t *testing.T) {
	tests := []struct {
		args string
		want string
		ok   bool
	}{
		{"/Applications/iTerm.app/Contents/MacOS/iTerm2", "iTerm2", true},
		{"/System/Applications/Utilities/Terminal.app/Contents/MacOS/Terminal", "Terminal", true},
		{"kitty --single-instance", "kitty", true},
		{"/usr/bin/alacritty", "Alacritty", true},
		{"/usr/bin/zsh", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, ok := Match(tt.args, DefaultKnown)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnown(t *testing.T) {
	app, ok := Known("ghostty", DefaultKnown)
	assert.True(t, ok)
	assert.Equal(t, "Ghostty", app)

	_, ok = Known("vscode", DefaultKnown)
	assert.False(t, ok)
}

func TestProbeResolvesPIDTTYs(t *testing.T) {
	p := NewProber(procs, nil)
	owners, ttys, err := p.Probe(context.Background(), []int{602, 601, 999}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[int]string{601: "/dev/ttys002"}, ttys)
	assert.Equal(t, "WezTerm", owners["/dev/ttys002"].App)
	assert.Len(t, owners, 1)
}
