package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/internal/daemon/collector"
	"github.com/petekp/claude-hud-sub008/internal/daemon/engine"
	"github.com/petekp/claude-hud-sub008/internal/daemon/eventlog"
	"github.com/petekp/claude-hud-sub008/internal/daemon/pidfile"
	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/internal/daemon/server"
	"github.com/petekp/claude-hud-sub008/internal/daemon/store"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/pkg/lock"
	"github.com/petekp/claude-hud-sub008/pkg/paths"
	"github.com/petekp/claude-hud-sub008/pkg/process"
	"github.com/petekp/claude-hud-sub008/pkg/profiling"
	"github.com/petekp/claude-hud-sub008/pkg/routing"
	"github.com/petekp/claude-hud-sub008/pkg/terminal"
	"github.com/petekp/claude-hud-sub008/pkg/tmux"
	"github.com/petekp/claude-hud-sub008/version"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and inspect the session state daemon",
		Long: `The daemon owns the event log and the materialized session state.
Hooks send events to it over a unix socket; every other command queries it.`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var profiles profiling.Profiles
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := profiles.Start(); err != nil {
				return err
			}
			defer profiles.Stop(logging.NewLogger("daemon"))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}
	profiles.AddFlags(cmd.Flags())
	return cmd
}

// runDaemon owns the daemon lifecycle: pid file, event log replay,
// collectors, socket server and config hot-reload. It returns when ctx ends.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger("daemon")

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create hud directories: %w", err)
	}

	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	log, err := eventlog.Open(cfg.EventLogPath())
	if err != nil {
		return err
	}
	defer log.Close()

	st := store.New(reducer.Options{
		TombstoneTTL:  cfg.Daemon.TombstoneTTL.D(),
		ActivityLimit: cfg.Daemon.ActivityLimit,
	})
	eng := engine.New(st, log, cfg.Daemon.IngestQueue, logging.NewLogger("engine"))

	replayed, err := eng.Replay(ctx)
	if err != nil {
		return fmt.Errorf("failed to replay event log: %w", err)
	}
	logger.WithField("events", replayed).Info("Replayed event log")

	tracker := process.NewTracker(
		process.WithCacheTTL(cfg.Liveness.CacheTTL.D()),
		process.WithProbeTimeout(cfg.Liveness.ProbeTimeout.D()),
	)

	locks := lock.NewManager(cfg.LocksDir(), tracker, lock.WithPartialGrace(cfg.Lock.PartialGrace.D()))
	if report, err := lock.NewSweeper(locks, tracker).Sweep(ctx); err != nil {
		logger.WithError(err).Warn("Orphan lock sweep failed")
	} else if len(report.RemovedLocks)+len(report.TerminatedHolders) > 0 {
		logger.WithField("removed", len(report.RemovedLocks)).
			WithField("terminated", len(report.TerminatedHolders)).
			Info("Swept orphaned locks")
	}

	eng.Register(collector.NewTmuxCollector(tmux.NewClient(), cfg.Routing.TmuxInterval.D(),
		logging.NewLogger("collector.tmux")))
	eng.Register(collector.NewTerminalCollector(
		terminal.NewProber(process.NewPSLister(), cfg.Routing.KnownTerminals),
		cfg.Routing.TerminalInterval.D(), logging.NewLogger("collector.terminal")))
	eng.Register(collector.NewReaper(eng, tracker, cfg.Liveness.ReapAfter.D(),
		logging.NewLogger("collector.reaper")))

	routingOpts, err := routing.FromConfig(cfg.Routing)
	if err != nil {
		return err
	}
	srv := server.New(eng, tracker, server.Options{
		RequestTimeout: cfg.Daemon.RequestTimeout.D(),
		Routing:        routingOpts,
		Version:        version.Version,
	}, logging.NewLogger("server"))

	if err := srv.Listen(cfg.SocketPath()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	configDir := paths.ConfigDir()
	if path, err := config.FindConfigFile(); err == nil {
		configDir = filepath.Dir(path)
	}
	watcher, err := daemon.NewConfigWatcher(configDir, 0, func(next *config.Config) {
		opts, err := routing.FromConfig(next.Routing)
		if err != nil {
			logger.WithError(err).Warn("Ignoring routing settings from reloaded config")
			return
		}
		srv.SetRouting(opts)
		logger.WithField("mode", opts.Mode).Info("Routing settings reloaded")
	})
	if err != nil {
		logger.WithError(err).Warn("Config hot-reload disabled")
	} else {
		defer watcher.Close()
		go watcher.Start(ctx)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	logger.WithField("pid", os.Getpid()).WithField("socket", cfg.SocketPath()).Info("Daemon started")

	select {
	case <-ctx.Done():
		logger.Info("Received stop signal")
	case err = <-serveErr:
		if err != nil {
			logger.WithError(err).Error("Server stopped")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil {
		logger.Errorf("Server shutdown error: %v", shutErr)
	}
	<-engineDone
	logger.Info("Daemon stopped")
	return err
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Long: `Reports whether the daemon is running and, when it answers, its health:
uptime, last applied event, session count and the routing gate.
Exits non-zero when the daemon is stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.NewRemoteClient(cfg.SocketPath(), cfg.Daemon.RequestTimeout.D())
			defer client.Close()

			health, err := client.Health(cmd.Context())
			if err != nil {
				if cli.GetOptions(cmd).JSONOutput {
					_ = cli.PrintJSON(cmd.OutOrStdout(), map[string]string{"status": "stopped"})
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				}
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), health)
			}
			pretty := newPretty(cmd.OutOrStdout())
			pretty.Success(fmt.Sprintf("Running (PID: %d)", health.PID))
			pretty.Path("Socket", cfg.SocketPath())
			pretty.Field("Version", health.Version)
			pretty.Field("Uptime", (time.Duration(health.UptimeSeconds) * time.Second).String())
			pretty.Field("Last seq", health.LastSeq)
			pretty.Field("Sessions", health.Sessions)
			pretty.Field("Routing", fmt.Sprintf("%s (trusted=%t)", health.Routing.Mode, health.Routing.Trusted))
			return nil
		},
	}
}
