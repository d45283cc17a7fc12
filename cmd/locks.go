package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/spf13/cobra"
)

// lockRow is a lock with the liveness of its pid at the time of listing.
type lockRow struct {
	models.LockInfo
	Liveness models.Liveness `json:"liveness"`
}

func newLockManager(cfg *config.Config) (*lock.Manager, *process.Tracker) {
	tracker := process.NewTracker(process.WithProbeTimeout(cfg.Liveness.ProbeTimeout.D()))
	return lock.NewManager(cfg.LocksDir(), tracker, lock.WithPartialGrace(cfg.Lock.PartialGrace.D())), tracker
}

// NewLocksCmd creates the `locks` command group for the fallback lock directory.
func NewLocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "Inspect fallback session locks",
		Long: `Hooks write a lock per session when the daemon cannot be reached. A
lock-holder process removes the lock when its session exits.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List locks and whether their process is alive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			locks, tracker := newLockManager(cfg)
			infos, err := locks.List()
			if err != nil {
				return err
			}
			rows := make([]lockRow, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, lockRow{
					LockInfo: info,
					Liveness: tracker.SameProcess(cmd.Context(), info.PID, info.ProcStarted),
				})
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), rows)
			}
			renderLocks(cmd.OutOrStdout(), rows, time.Now())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove locks of dead processes and stop orphaned lock-holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			locks, tracker := newLockManager(cfg)
			report, err := lock.NewSweeper(locks, tracker).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), report)
			}
			p := newPretty(cmd.OutOrStdout())
			for _, path := range report.RemovedLocks {
				p.Path("Removed", path)
			}
			for _, pid := range report.TerminatedHolders {
				p.Field("Terminated lock-holder", pid)
			}
			p.Success(fmt.Sprintf("Sweep done, %d live locks kept", report.KeptLocks))
			return nil
		},
	})

	return cmd
}

func renderLocks(w io.Writer, rows []lockRow, now time.Time) {
	if len(rows) == 0 {
		fmt.Fprintln(w, cli.DefaultTheme.Muted.Render("No locks"))
		return
	}
	t := cli.NewTable("SESSION", "PID", "PROCESS", "AGE", "PATH")
	home := homeDir()
	for _, r := range rows {
		t.Row(cli.ShortID(r.SessionID), strconv.Itoa(r.PID), string(r.Liveness),
			cli.Age(r.Created, now), cli.HomeRelative(r.Dir, home))
	}
	fmt.Fprintln(w, t.String())
}
