package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/petekp/claude-hud-sub008/cli"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/petekp/claude-hud-sub008/pkg/activation"
	"github.com/petekp/claude-hud-sub008/pkg/daemon"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/tmux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newActivator wires the focus and fallback actions from config.
func newActivator(cfg *config.Config, emit func(activation.Outcome)) *activation.Activator {
	var fallback activation.Fallback
	if len(cfg.Activation.FallbackCommand) > 0 {
		fallback = activation.NewCommandFallback(cfg.Activation.FallbackCommand)
	}
	opts := []activation.Option{activation.WithTimeout(cfg.Activation.Timeout.D())}
	if emit != nil {
		opts = append(opts, activation.WithEmitter(emit))
	}
	return activation.NewActivator(activation.NewFocuser(tmux.NewClient()), fallback,
		logging.NewLogger("activation"), opts...)
}

// activationRequest issues a request for path and resolves it. Its sequence
// number is reserved before routing, so a later request always supersedes
// it. A daemon that is down, or whose routing is not trusted, yields an
// unavailable decision so the fallback runs.
func activationRequest(ctx context.Context, a *activation.Activator, client daemon.Client, path, workspace string) activation.Request {
	log := logging.NewLogger("activation")
	req := activation.Request{ID: uuid.NewString(), ProjectPath: path}
	req.Seq = a.Begin(req.Key())

	decision, err := client.Route(ctx, path, workspace)
	if err != nil {
		log.WithError(err).Debug("Routing unavailable")
	}
	if decision.Status == models.DecisionOK {
		if health, err := client.Health(ctx); err == nil && !health.Routing.Trusted {
			log.WithFields(logrus.Fields{
				"project_path": path,
				"mode":         health.Routing.Mode,
				"reason":       decision.ReasonCode,
			}).Info("Routing not trusted, using fallback")
			decision = models.Unavailable(path, models.ReasonRoutingShadow)
		}
	}
	req.Decision = decision
	return req
}

// NewActivateCmd focuses the terminal of a project, or runs the fallback.
func NewActivateCmd() *cobra.Command {
	var flags routeFlags

	cmd := &cobra.Command{
		Use:   "activate [path]",
		Short: "Focus the terminal of a project",
		Long: `Resolves the project's activation target and focuses it: a tmux client is
switched to the project's session and its terminal app raised. When no
target is trusted, activation.fallback_command from the config runs with
{path} and {slug} substituted.

Examples:
  hud activate ~/code/api`,
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

			activator := newActivator(cfg, nil)
			req := activationRequest(cmd.Context(), activator, client, path, flags.workspace)
			outcome, _ := activator.Activate(cmd.Context(), req)

			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), outcome)
			}
			pretty := newPretty(cmd.OutOrStdout())
			switch outcome.Action {
			case activation.ActionPrimary:
				pretty.Success("Focused " + outcome.Target.Value)
			case activation.ActionFallback:
				pretty.Success("Opened " + path + " with fallback command")
			default:
				return errors.New(errors.ErrCodeCommandFailed, "activation failed: "+outcome.Error).
					WithDetail("project_path", path)
			}
			return nil
		},
	}

	cmd.Flags().AddFlagSet(flags.flagSet())
	return cmd
}
