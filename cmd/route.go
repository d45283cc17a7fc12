package cmd

import (
	"os"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// routeFlags are shared by route and activate.
type routeFlags struct {
	workspace string
}

func (f *routeFlags) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("routing", pflag.ContinueOnError)
	fs.StringVarP(&f.workspace, "workspace", "w", "", "Workspace id the project belongs to")
	return fs
}

func projectArg(args []string) (string, error) {
	if len(args) == 1 {
		return canonicalPaths(args)[0], nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return canonicalPaths([]string{cwd})[0], nil
}

// NewRouteCmd explains where an activation of a project would go.
func NewRouteCmd() *cobra.Command {
	var (
		flags       routeFlags
		diagnostics bool
	)

	cmd := &cobra.Command{
		Use:   "route [path]",
		Short: "Explain where activating a project would go",
		Long: `Asks the daemon to resolve the activation target of a project and prints
the decision with the trace of every candidate: its scope, trust, age and
why it was selected, rejected or filtered.

Without a daemon the decision is unavailable with DAEMON_UNAVAILABLE.

Examples:
  hud route
  hud route ~/code/api --workspace api-main
  hud route --diagnostics --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args)
			if err != nil {
				return err
			}
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()
			out := cmd.OutOrStdout()

			if diagnostics {
				diag, err := client.RouteDiagnostics(cmd.Context(), path, flags.workspace)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return cli.PrintJSON(out, diag)
				}
				pretty := newPretty(out)
				pretty.Field("Mode", diag.Mode)
				pretty.Field("Evidence", len(diag.Evidence))
				pretty.Field("tmux snapshot", cli.Age(diag.TmuxSnapshotAt, diag.GeneratedAt))
				renderDecision(out, diag.Decision)
				return nil
			}

			decision, err := client.Route(cmd.Context(), path, flags.workspace)
			if cli.GetOptions(cmd).JSONOutput {
				if jsonErr := cli.PrintJSON(out, decision); jsonErr != nil {
					return jsonErr
				}
			} else {
				renderDecision(out, decision)
			}
			return err
		},
	}

	cmd.Flags().AddFlagSet(flags.flagSet())
	cmd.Flags().BoolVarP(&diagnostics, "diagnostics", "d", false, "Include evidence and snapshot ages")
	return cmd
}
