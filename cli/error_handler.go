package cli

import (
	"fmt"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/spf13/cobra"
)

// ErrorHandler turns coded errors into user-facing messages.
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Hint returns the follow-up suggestion for err, or "".
func (h *ErrorHandler) Hint(err error) string {
	hudErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if hudErr == nil {
			return nil
		}
		return hudErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		return "Run 'hud config init' to write a default configuration."
	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		return "Run 'hud config validate' to see the offending keys."
	case errors.ErrCodeDaemonUnavailable:
		return fmt.Sprintf("Start the daemon with 'hud daemon start' (socket %v).", detail("socket"))
	case errors.ErrCodeTimeout:
		return "The daemon did not answer in time; check 'hud logs' for a stuck ingest."
	case errors.ErrCodeProtocolVersion:
		return fmt.Sprintf("Client and daemon disagree on protocol version (got %v, want %v); restart the daemon.",
			detail("got"), detail("want"))
	case errors.ErrCodeLockHeld:
		return fmt.Sprintf("Another live process holds the session lock (pid %v).", detail("pid"))
	case errors.ErrCodeEventLog:
		return "The event log could not be written; 'hud replay' checks it offline."
	case errors.ErrCodeCommandNotFound:
		return "A required command is missing; make sure tmux is installed and on PATH."
	}
	return ""
}

// Handle prints err and its hint to the command's stderr.
func (h *ErrorHandler) Handle(cmd *cobra.Command, err error) {
	PrintError(cmd, err)
	if hint := h.Hint(err); hint != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), DefaultTheme.Muted.Render(hint))
	}
	if h.Verbose {
		if hudErr, ok := errors.As(err); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nError details:\n%s\n", hudErr.ToJSON())
		}
	}
}
