package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
)

const (
	// DefaultTimeout bounds probes such as ps and tmux list-*.
	DefaultTimeout = 2 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = time.Minute
)

// SafeBuilder provides bounded command execution with argument validation.
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"tmuxTarget": validateTmuxTarget,
		"sessionID":  validateSessionID,
		"fileName":   validateFileName,
	}
}

var (
	tmuxTargetPattern = regexp.MustCompile(`^[A-Za-z0-9_./:@%$+-]+$`)
	sessionIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
)

// validateTmuxTarget accepts tmux session names, client ttys and pane ids.
func validateTmuxTarget(target string) error {
	if target == "" {
		return fmt.Errorf("tmux target cannot be empty")
	}
	if !tmuxTargetPattern.MatchString(target) {
		return fmt.Errorf("invalid tmux target: %s", target)
	}
	return nil
}

// validateSessionID keeps session ids safe to embed in lock directory names.
func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id: %s", id)
	}
	if len(id) > 128 {
		return fmt.Errorf("session id too long (max 128 characters)")
	}
	return nil
}

func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}
	return nil
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}
	return validator(value)
}

// Command is a validated command waiting to run.
type Command struct {
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command bounded by the builder's default timeout.
func (sb *SafeBuilder) Build(name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	return &Command{
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// String renders the command line for logs and errors.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Output runs the command and returns its stdout. A command that outlives its
// timeout fails with COMMAND_TIMEOUT, a non-zero exit with COMMAND_FAILED.
func (c *Command) Output(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := c.executor.CommandContext(ctx, c.name, c.args...) //nolint:gosec // arguments are validated by callers
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.New(errors.ErrCodeCommandTimeout,
			fmt.Sprintf("command timed out after %s: %s", c.timeout, c.String())).
			WithDetail("command", c.String())
	}
	if err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, errors.Wrap(err, errors.ErrCodeCommandNotFound, "command not found").
				WithDetail("command", c.name)
		}
		hudErr := errors.CommandFailed(c.String(), err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			hudErr = hudErr.WithDetail("stderr", msg)
		}
		return nil, hudErr
	}
	return stdout.Bytes(), nil
}

// Run runs the command and discards its output.
func (c *Command) Run(ctx context.Context) error {
	_, err := c.Output(ctx)
	return err
}
