package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/paths"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the hud configuration",
		Long: `The configuration is read from $HUD_CONFIG, or the first of hud.yml, hud.yaml
and hud.toml in the config directory. Missing files mean defaults.`,
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigValidateCmd(), newConfigSchemaCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), cfg)
			}

			source := "defaults"
			if path, err := config.FindConfigFile(); err == nil {
				source = path
			}
			data, err := config.Marshal(cfg, config.Format(format))
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to render configuration")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n%s", source, data)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.FormatYAML), "Output syntax (yaml or toml)")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				found, err := config.FindConfigFile()
				if err != nil {
					return err
				}
				path = found
			}

			if _, err := config.Load(path); err != nil {
				return err
			}
			newPretty(cmd.OutOrStdout()).Success(fmt.Sprintf("%s is valid", path))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to generate schema")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file containing the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "hud.yml"
			if config.Format(format) == config.FormatTOML {
				name = "hud.toml"
			}
			path := filepath.Join(paths.ConfigDir(), name)
			if p := cli.GetOptions(cmd).ConfigFile; p != "" {
				path = p
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInvalidInput, "config file already exists").
					WithDetail("path", path)
			}

			data, err := config.Marshal(config.Default(), config.FormatFor(path))
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to render configuration")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create config directory")
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to write config file")
			}
			newPretty(cmd.OutOrStdout()).Path("Wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.FormatYAML), "File syntax (yaml or toml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
