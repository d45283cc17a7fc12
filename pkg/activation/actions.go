package activation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/petekp/claude-hud-sub008/command"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/util/pathutil"
)

// TmuxSwitcher is the part of the tmux client activation needs.
type TmuxSwitcher interface {
	ListClients(ctx context.Context) ([]models.TmuxClient, error)
	SwitchClient(ctx context.Context, clientTTY, session string) error
}

// Focuser is the default Primary: tmux targets are switched to, terminal
// targets have their app raised.
type Focuser struct {
	Tmux    TmuxSwitcher
	Builder *command.SafeBuilder
	GOOS    string
}

func NewFocuser(tmux TmuxSwitcher) *Focuser {
	return &Focuser{Tmux: tmux, Builder: command.NewSafeBuilder(), GOOS: runtime.GOOS}
}

func (f *Focuser) Focus(ctx context.Context, t models.Target) error {
	switch t.Kind {
	case models.EvidenceTmuxSession:
		clients, err := f.Tmux.ListClients(ctx)
		if err != nil {
			return err
		}
		if len(clients) == 0 {
			return fmt.Errorf("no tmux client attached to switch to %s", t.Value)
		}
		// most recently active client first
		sort.SliceStable(clients, func(i, j int) bool {
			if !clients[i].LastActivity.Equal(clients[j].LastActivity) {
				return clients[i].LastActivity.After(clients[j].LastActivity)
			}
			return clients[i].TTY < clients[j].TTY
		})
		if err := f.Tmux.SwitchClient(ctx, clients[0].TTY, t.Value); err != nil {
			return err
		}
		if t.App == "" {
			return nil
		}
		return f.raise(ctx, t.App)
	case models.EvidenceTmuxClient:
		if t.App == "" {
			// the client is already showing the project
			return nil
		}
		return f.raise(ctx, t.App)
	default:
		if t.App == "" {
			return fmt.Errorf("no known terminal owns %s", t.Value)
		}
		return f.raise(ctx, t.App)
	}
}

func (f *Focuser) raise(ctx context.Context, app string) error {
	if f.GOOS != "darwin" {
		return fmt.Errorf("raising %s is not supported on %s", app, f.GOOS)
	}
	cmd, err := f.Builder.Build("open", "-a", app)
	if err != nil {
		return err
	}
	return cmd.Run(ctx)
}

// CommandFallback runs a configured argv, substituting {path} and {slug}.
type CommandFallback struct {
	Argv    []string
	Builder *command.SafeBuilder
}

func NewCommandFallback(argv []string) *CommandFallback {
	return &CommandFallback{Argv: argv, Builder: command.NewSafeBuilder()}
}

func (c *CommandFallback) Open(ctx context.Context, projectPath string) error {
	if len(c.Argv) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "activation.fallback_command is not configured")
	}
	if err := c.Builder.Validate("fileName", projectPath); err != nil {
		return errors.InvalidInput(err.Error())
	}
	argv := Expand(c.Argv, projectPath)
	cmd, err := c.Builder.Build(argv[0], argv[1:]...)
	if err != nil {
		return err
	}
	return cmd.Run(ctx)
}

// Expand substitutes {path} and {slug} in every argument.
func Expand(argv []string, projectPath string) []string {
	r := strings.NewReplacer("{path}", projectPath, "{slug}", pathutil.Slug(projectPath))
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return out
}
