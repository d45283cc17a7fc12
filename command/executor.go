package command

import (
	"context"
	"os"
	"os/exec"
)

// Executor creates the exec.Cmd behind a Command. Tests inject one that
// points at shell snippets instead of tmux or ps.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

func (f ExecutorFunc) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return f(ctx, name, args...)
}

// RealExecutor runs binaries from PATH under the C locale, so ps and tmux
// print the column formats the parsers expect.
type RealExecutor struct {
	// Env is appended to the inherited environment.
	Env []string
}

func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(append(os.Environ(), "LC_ALL=C"), e.Env...)
	return cmd
}
