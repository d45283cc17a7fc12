package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/util/pathutil"
	"github.com/spf13/cobra"
)

// NewSessionsCmd lists tracked sessions with their effective state.
func NewSessionsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions and their effective state",
		Long: `Lists the sessions the daemon tracks. Without a daemon the lock
directory is read instead; those sessions show as ready.

Idle sessions are hidden unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()

			views, err := client.Sessions(cmd.Context(), all)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), views)
			}
			renderSessions(cmd.OutOrStdout(), views, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include idle sessions")
	return cmd
}

// NewProjectsCmd aggregates sessions per project.
func NewProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects [path...]",
		Short: "Show the aggregated state of projects",
		Long: `Groups sessions by project and reports the most urgent state of each.
With paths, only those projects are reported, including ones without sessions.

Examples:
  hud projects
  hud projects ~/code/api ~/code/web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()

			projects, err := client.ProjectStates(cmd.Context(), canonicalPaths(args))
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), projects)
			}
			renderProjects(cmd.OutOrStdout(), projects, time.Now())
			return nil
		},
	}
	return cmd
}

// NewActivityCmd lists files recently touched under a project.
func NewActivityCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity [path]",
		Short: "Show files recently touched by tools",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg)
			defer client.Close()

			path := ""
			if len(args) == 1 {
				path = canonicalPaths(args)[0]
			}
			entries, err := client.Activity(cmd.Context(), path, limit)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), entries)
			}
			renderActivity(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	return cmd
}

func canonicalPaths(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		p, err := pathutil.CanonicalPath(a)
		if err != nil {
			p = filepath.Clean(a)
		}
		out = append(out, p)
	}
	return out
}
