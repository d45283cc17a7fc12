package main

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/command"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// VersionScenario tests the 'version' command.
func VersionScenario() *harness.Scenario {
	return &harness.Scenario{
		Name: "hud-basic-version",
		Steps: []harness.Step{
			harness.NewStep("Run 'hud version'", func(ctx *harness.Context) error {
				hudBinary, err := FindProjectBinary()
				if err != nil {
					return err
				}

				cmd := command.New(hudBinary, "version")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "hud version should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Version:", "Output should contain Version"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "Commit:", "Output should contain Commit")
			}),
		},
	}
}

// PathsScenario checks that configured locations are reported.
func PathsScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-basic-paths",
		Description: "Verifies that 'hud paths' reports the configured socket, event log and locks.",
		Tags:        []string{"hud", "config"},
		Steps: []harness.Step{
			harness.NewStep("Setup config", setupHud),
			harness.NewStep("Run 'hud paths --json'", func(ctx *harness.Context) error {
				out, code, err := hud(ctx, "paths", "--json")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "hud paths should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(out, ctx.GetString("socket"), "socket path should come from config"); err != nil {
					return err
				}
				if err := assert.Contains(out, filepath.Join(ctx.GetString("state_dir"), "events.db"), "event log should come from config"); err != nil {
					return err
				}
				return assert.Contains(out, ctx.GetString("config"), "config file should be reported")
			}),
		},
	}
}

// ConfigInitValidateScenario writes the default config and validates it.
func ConfigInitValidateScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-config-init-validate",
		Description: "Verifies that 'hud config init' writes a file that 'hud config validate' accepts.",
		Tags:        []string{"hud", "config"},
		Steps: []harness.Step{
			harness.NewStep("Write and validate the default config", func(ctx *harness.Context) error {
				hudBinary, err := FindProjectBinary()
				if err != nil {
					return err
				}
				path := filepath.Join(ctx.NewDir("init"), "hud.toml")

				for _, args := range [][]string{
					{"--config", path, "config", "init"},
					{"--config", path, "config", "validate"},
				} {
					cmd := ctx.Command(hudBinary, args...)
					result := cmd.Run()
					ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
					if result.ExitCode != 0 {
						return fmt.Errorf("%s exited %d", cmd.String(), result.ExitCode)
					}
				}

				content, err := fs.ReadString(path)
				if err != nil {
					return err
				}
				if err := assert.Contains(content, "request_timeout", "TOML config should contain daemon settings"); err != nil {
					return err
				}

				cmd := ctx.Command(hudBinary, "--config", path, "config", "init")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				return assert.Equal(1, result.ExitCode, "init should refuse to overwrite without --force")
			}),
		},
	}
}

// ConfigInvalidScenario checks that unknown keys are rejected by the schema.
func ConfigInvalidScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "hud-config-invalid",
		Description: "Verifies that a config with unknown keys fails validation with a hint.",
		Tags:        []string{"hud", "config"},
		Steps: []harness.Step{
			harness.NewStep("Validate a config with a typo", func(ctx *harness.Context) error {
				hudBinary, err := FindProjectBinary()
				if err != nil {
					return err
				}
				path := filepath.Join(ctx.NewDir("bad"), "hud.yml")
				if err := fs.WriteString(path, "daemon:\n  request_timeot: 1s\n"); err != nil {
					return err
				}

				cmd := ctx.Command(hudBinary, "config", "validate", path)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
				if err := assert.Equal(1, result.ExitCode, "validate should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "request_timeot", "error should name the unknown key")
			}),
		},
	}
}
