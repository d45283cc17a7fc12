package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/pkg/hook"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/petekp/claude-hud-sub008/pkg/profiling"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type hookOptions struct {
	pid    int
	cwd    string
	tty    string
	input  string
	strict bool
}

// NewHookCmd returns the command assistant hooks and shell prompts invoke.
func NewHookCmd() *cobra.Command {
	var opts hookOptions

	cmd := &cobra.Command{
		Use:   "hook [event]",
		Short: "Send a hook event to the daemon",
		Long: `Reads the hook payload the assistant writes to stdin, turns it into an
event and sends it to the daemon. The event type comes from the argument or,
when omitted, from hook_event_name in the payload.

When the daemon is not running, session_start and session_end fall back to
the lock directory and session_start starts a lock-holder for the session.

shell-cwd is sent by a shell prompt hook and reads no stdin.

Hook failures never fail the assistant unless --strict is set.

Examples:
  # in the assistant's hook settings
  hud hook session-start

  # in a zsh precmd hook
  hud hook shell-cwd --pid $$ --tty $(tty)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("hook")
			err := runHook(cmd, args, opts, logger)
			if err != nil && !opts.strict {
				logger.WithError(err).Warn("Hook event dropped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.pid, "pid", 0, "Session or shell pid (default: the hook's parent process)")
	cmd.Flags().StringVar(&opts.cwd, "cwd", "", "Directory for shell-cwd (default: current directory)")
	cmd.Flags().StringVar(&opts.tty, "tty", "", "Controlling tty for shell-cwd")
	cmd.Flags().StringVar(&opts.input, "input", "", "Read the hook payload from this file instead of stdin")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when the event cannot be delivered")

	return cmd
}

func runHook(cmd *cobra.Command, args []string, opts hookOptions, logger *logrus.Entry) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var typ models.EventType
	if len(args) == 1 {
		t, ok := hook.EventType(args[0])
		if !ok {
			return errors.InvalidInput(fmt.Sprintf("unknown hook event %q", args[0]))
		}
		typ = t
	}

	phases := profiling.NewPhases()
	ev, err := buildHookEvent(ctx, cmd, cfg, typ, opts)
	if err != nil {
		return err
	}
	phases.Mark("build")

	client := daemon.New(cfg)
	defer client.Close()

	res, err := client.Send(ctx, ev)
	if err != nil {
		return err
	}
	phases.Mark("send")
	logger.WithFields(phases.Fields()).WithFields(logrus.Fields{
		"event_id":   ev.EventID,
		"event_type": ev.Type,
		"session_id": ev.SessionID,
		"pid":        ev.PID,
		"applied":    res.Applied,
		"skipped":    res.SkippedReason,
	}).Debug("Hook event sent")

	if ev.Type == models.EventSessionStart && res.Applied {
		// Only the lock fallback leaves a lock behind; it needs a holder.
		locks := lock.NewManager(cfg.LocksDir(), process.NewTracker())
		if _, err := locks.Find(ev.SessionID, ev.PID); err == nil {
			if err := spawnLockHolder(ev.SessionID, ev.PID); err != nil {
				return fmt.Errorf("failed to start lock-holder: %w", err)
			}
			logger.WithField("session_id", ev.SessionID).Info("Started lock-holder")
		}
	}
	return nil
}

func buildHookEvent(ctx context.Context, cmd *cobra.Command, cfg *config.Config, typ models.EventType, opts hookOptions) (models.Event, error) {
	parent := opts.pid
	if parent <= 0 {
		parent = os.Getppid()
	}
	lister := process.NewPSLister()
	now := time.Now()

	if typ == models.EventShellCwd {
		proc := hook.ResolveShell(ctx, lister, parent, cfg.Routing.KnownTerminals)
		if opts.tty != "" {
			proc.TTY = process.NormalizeTTY(opts.tty)
		}
		cwd := opts.cwd
		if cwd == "" {
			var err error
			if cwd, err = os.Getwd(); err != nil {
				return models.Event{}, err
			}
		}
		return hook.ShellCwd(cwd, proc, now)
	}

	payload := cmd.InOrStdin()
	if opts.input != "" {
		f, err := os.Open(opts.input)
		if err != nil {
			return models.Event{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to open hook payload")
		}
		defer f.Close()
		payload = f
	}
	in, err := hook.Parse(payload)
	if err != nil {
		return models.Event{}, err
	}
	proc := hook.ResolveProcess(ctx, lister, parent, cfg.Routing.KnownTerminals)
	proc.ProjectDir = os.Getenv("CLAUDE_PROJECT_DIR")
	return in.Event(typ, proc, now)
}

// spawnLockHolder starts a detached lock-holder that outlives the hook.
func spawnLockHolder(sessionID string, pid int) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	holder := exec.Command(exe, lock.HolderCommand, "--session", sessionID, "--pid", strconv.Itoa(pid))
	holder.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := holder.Start(); err != nil {
		return err
	}
	return holder.Process.Release()
}
