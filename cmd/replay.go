package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/internal/daemon/engine"
	"github.com/petekp/claude-hud-sub008/internal/daemon/eventlog"
	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/routing"
	"github.com/spf13/cobra"
)

// ReplayResult is the state rebuilt from an event log without a daemon.
type ReplayResult struct {
	Path     string               `json:"path"`
	Events   int                  `json:"events"`
	LastSeq  int64                `json:"last_seq"`
	Sessions []models.SessionView `json:"sessions"`
}

// replayEventLog folds every event at path into a fresh store and returns
// the resulting views.
func replayEventLog(ctx context.Context, cfg *config.Config, path string, live routing.Liveness, includeIdle bool, now time.Time) (ReplayResult, error) {
	log, err := eventlog.Open(path)
	if err != nil {
		return ReplayResult{}, err
	}
	defer log.Close()

	st := store.New(reducer.Options{
		TombstoneTTL:  cfg.Daemon.TombstoneTTL.D(),
		ActivityLimit: cfg.Daemon.ActivityLimit,
	})
	n, err := engine.New(st, log, 1, logging.NewLogger("replay")).Replay(ctx)
	if err != nil {
		return ReplayResult{}, err
	}

	res := ReplayResult{Path: path, Events: n, LastSeq: st.LastSeq(), Sessions: []models.SessionView{}}
	for _, rec := range st.Sessions() {
		v := reducer.View(rec, now, live.SameProcess(ctx, rec.PID, rec.ProcStarted))
		if v.EffectiveState == models.StateIdle && !includeIdle {
			continue
		}
		res.Sessions = append(res.Sessions, v)
	}
	return res, nil
}

// NewReplayCmd creates the `replay` command.
func NewReplayCmd() *cobra.Command {
	var (
		all  bool
		path string
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild session state from the event log without the daemon",
		Long: `Reads the event log from the first event and prints the sessions it
produces. The daemon does the same on startup; this is for inspecting a log
offline or checking what a restart would recover.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.EventLogPath()
			}

			_, tracker := newLockManager(cfg)
			now := time.Now().UTC()
			res, err := replayEventLog(cmd.Context(), cfg, path, tracker, all, now)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), res)
			}

			p := newPretty(cmd.OutOrStdout())
			p.Path("Event log", res.Path)
			p.Field("Events", res.Events)
			p.Field("Last seq", res.LastSeq)
			fmt.Fprintln(cmd.OutOrStdout())
			renderSessions(cmd.OutOrStdout(), res.Sessions, now)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include idle sessions")
	cmd.Flags().StringVar(&path, "log", "", "Event log to read instead of the configured one")
	return cmd
}
