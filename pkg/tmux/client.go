// Package tmux reads tmux client and session state and switches clients.
// Every call goes through command.SafeBuilder and is bounded by its timeout.
package tmux

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/petekp/claude-hud-sub008/command"
	"github.com/petekp/claude-hud-sub008/errors"
)

// DefaultTimeout bounds each tmux invocation.
const DefaultTimeout = 2 * time.Second

type Client struct {
	builder *command.SafeBuilder
	socket  string // Socket name for a dedicated tmux server (uses -L flag)
	timeout time.Duration
}

// NewClient returns a client for the default tmux server, or the server
// named by HUD_TMUX_SOCKET (used by tests to isolate a server).
func NewClient() *Client {
	return NewClientWithBuilder(command.NewSafeBuilder(), os.Getenv("HUD_TMUX_SOCKET"))
}

// NewClientWithBuilder injects the command builder, which lets tests swap
// the executor.
func NewClientWithBuilder(builder *command.SafeBuilder, socket string) *Client {
	return &Client{builder: builder, socket: socket, timeout: DefaultTimeout}
}

// Socket returns the socket name this client uses, or empty string for default.
func (c *Client) Socket() string {
	return c.socket
}

// SessionExists reports whether a session with exactly this name exists.
func (c *Client) SessionExists(ctx context.Context, sessionName string) (bool, error) {
	if err := c.builder.Validate("tmuxTarget", sessionName); err != nil {
		return false, errors.InvalidInput(err.Error())
	}
	_, err := c.run(ctx, "has-session", "-t", "="+sessionName)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrCodeCommandFailed) {
		return false, nil
	}
	return false, err
}

// SwitchClient points the client attached on clientTTY at session.
func (c *Client) SwitchClient(ctx context.Context, clientTTY, session string) error {
	for _, v := range []string{clientTTY, session} {
		if err := c.builder.Validate("tmuxTarget", v); err != nil {
			return errors.InvalidInput(err.Error())
		}
	}
	_, err := c.run(ctx, "switch-client", "-c", clientTTY, "-t", "="+session)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	// Prepend socket flag if using a dedicated server
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	cmd, err := c.builder.Build("tmux", args...)
	if err != nil {
		return "", err
	}
	out, err := cmd.WithTimeout(c.timeout).Output(ctx)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// isNoServer reports a failure caused by no tmux server running, which is
// an empty snapshot rather than an error.
func isNoServer(err error) bool {
	hudErr, ok := err.(*errors.HudError)
	if !ok || hudErr.Code != errors.ErrCodeCommandFailed {
		return false
	}
	stderr, _ := hudErr.Details["stderr"].(string)
	return strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "no sessions")
}
