package cli

import (
	"os"

	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the flags every hud command accepts.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a root command with the standard flags. The
// flags are applied before any subcommand runs, so loggers and config
// lookups created afterwards see them.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts := GetOptions(cmd)
			if opts.ConfigFile != "" {
				if err := os.Setenv("HUD_CONFIG", opts.ConfigFile); err != nil {
					return err
				}
			}
			if opts.Verbose && os.Getenv("HUD_LOG_LEVEL") == "" {
				return os.Setenv("HUD_LOG_LEVEL", "debug")
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to hud.yml or hud.toml")

	return cmd
}

// GetOptions extracts the standard options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the configuration selected by --config or HUD_CONFIG,
// falling back to defaults when no file exists.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path := GetOptions(cmd).ConfigFile; path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// GetLogger returns the component logger, at debug level when --verbose is set.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	entry := logging.NewLogger(component)
	if GetOptions(cmd).Verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}

// Execute runs root and reports a failure through the error handler. It
// returns the process exit code.
func Execute(root *cobra.Command) int {
	ApplyStyledHelp(root)
	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	if cmd == nil {
		cmd = root
	}
	NewErrorHandler(GetOptions(cmd).Verbose).Handle(cmd, err)
	return 1
}
