package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/spf13/cobra"
)

// NewLockHolderCmd returns the hidden command that watches one fallback lock.
func NewLockHolderCmd() *cobra.Command {
	var (
		sessionID string
		pid       int
	)

	cmd := &cobra.Command{
		Use:    lock.HolderCommand,
		Short:  "Watch one session lock until its process exits",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" || pid <= 0 {
				return fmt.Errorf("--session and --pid are required")
			}
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			tracker := process.NewTracker(
				process.WithCacheTTL(0),
				process.WithProbeTimeout(cfg.Liveness.ProbeTimeout.D()),
			)
			locks := lock.NewManager(cfg.LocksDir(), tracker, lock.WithPartialGrace(cfg.Lock.PartialGrace.D()))
			info, err := locks.Find(sessionID, pid)
			if err != nil {
				return err
			}

			holder := lock.NewHolder(locks, *info, tracker)
			holder.PollInterval = cfg.Lock.PollInterval.D()
			holder.MaxLifetime = cfg.Lock.MaxLifetime.D()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reason, err := holder.Run(ctx)
			logging.NewLogger("lock-holder").
				WithField("session_id", sessionID).
				WithField("pid", pid).
				WithField("reason", reason).
				Info("Lock-holder exited")
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id of the lock")
	cmd.Flags().IntVar(&pid, "pid", 0, "Process id the lock belongs to")

	return cmd
}
