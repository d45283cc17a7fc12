package main

import (
	"os"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/cmd"
)

func main() {
	cli.InitializeColor()

	rootCmd := cli.NewStandardCommand(
		"hud",
		"Track coding-agent sessions and focus their terminals",
	)

	rootCmd.AddCommand(cli.NewVersionCommand("hud"))
	rootCmd.AddCommand(cmd.NewDaemonCmd())
	rootCmd.AddCommand(cmd.NewHookCmd())
	rootCmd.AddCommand(cmd.NewLockHolderCmd())
	rootCmd.AddCommand(cmd.NewLocksCmd())
	rootCmd.AddCommand(cmd.NewSessionsCmd())
	rootCmd.AddCommand(cmd.NewProjectsCmd())
	rootCmd.AddCommand(cmd.NewActivityCmd())
	rootCmd.AddCommand(cmd.NewRouteCmd())
	rootCmd.AddCommand(cmd.NewActivateCmd())
	rootCmd.AddCommand(cmd.NewWatchCmd())
	rootCmd.AddCommand(cmd.NewReplayCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())

	os.Exit(cli.Execute(rootCmd))
}
