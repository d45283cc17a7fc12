package cmd

import (
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the locations hud reads and writes.
type PathsOutput struct {
	ConfigDir  string `json:"config_dir"`
	ConfigFile string `json:"config_file,omitempty"`
	StateDir   string `json:"state_dir"`
	CacheDir   string `json:"cache_dir"`
	RuntimeDir string `json:"runtime_dir"`
	Socket     string `json:"socket"`
	PidFile    string `json:"pid_file"`
	EventLog   string `json:"event_log"`
	LocksDir   string `json:"locks_dir"`
	LogFile    string `json:"log_file"`
}

func resolvePaths(cfg *config.Config, now time.Time) PathsOutput {
	out := PathsOutput{
		ConfigDir:  paths.ConfigDir(),
		StateDir:   paths.StateDir(),
		CacheDir:   paths.CacheDir(),
		RuntimeDir: paths.RuntimeDir(),
		Socket:     cfg.SocketPath(),
		PidFile:    paths.PidFilePath(),
		EventLog:   cfg.EventLogPath(),
		LocksDir:   cfg.LocksDir(),
	}
	if file, err := config.FindConfigFile(); err == nil {
		out.ConfigFile = file
	}
	var logCfg logging.Config
	_ = cfg.UnmarshalExtension("logging", &logCfg)
	out.LogFile = logCfg.FilePath(now)
	return out
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the files and directories used by hud",
		Long: `Print the files and directories used by hud. HUD_HOME moves all of them
under a single directory; otherwise the XDG base directories are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			out := resolvePaths(cfg, time.Now())
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), out)
			}

			p := newPretty(cmd.OutOrStdout())
			p.Path("Config dir", out.ConfigDir)
			if out.ConfigFile != "" {
				p.Path("Config file", out.ConfigFile)
			}
			p.Path("State dir", out.StateDir)
			p.Path("Cache dir", out.CacheDir)
			p.Path("Runtime dir", out.RuntimeDir)
			p.Path("Socket", out.Socket)
			p.Path("Pid file", out.PidFile)
			p.Path("Event log", out.EventLog)
			p.Path("Locks", out.LocksDir)
			p.Path("Log file", out.LogFile)
			return nil
		},
	}
}
