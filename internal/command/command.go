// Package command runs the external tools (curl, tar) that the alternative
// fetch and extract backends shell out to.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// ExitError describes a tool that ran but exited unsuccessfully.
type ExitError struct {
	Tool        string
	Code        int
	Description string
	Err         error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.Code, e.Description)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner starts external processes
type Runner struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
}

// NewRunner creates a runner that forwards tool output to stderr
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
		stdout: os.Stderr,
		stderr: os.Stderr,
		logger: logger,
	}
}

// WithExec replaces process creation, used by tests
func (r *Runner) WithExec(fn func(ctx context.Context, name string, args ...string) Commander) *Runner {
	r.execCommand = fn
	return r
}

// Run executes name with args and blocks until it exits
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	r.logger.Debug("running external tool", "tool", name, "args", strings.Join(args, " "))

	c := r.execCommand(ctx, name, args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if IsSuccess(code) {
			return nil
		}

		return &ExitError{
			Tool:        name,
			Code:        code,
			Description: Describe(name, code),
			Err:         err,
		}
	}

	return fmt.Errorf("failed to start %s: %w", name, err)
}
