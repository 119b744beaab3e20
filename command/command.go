// Package command runs the host utilities (zfs, jls, jexec) that the
// listing reads from. Every caller goes through a Runner so tests can
// replace the host with canned output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a program and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Error is returned when a program ran and exited non-zero. Output holds
// the captured stdout and stderr lines so callers can show them.
type Error struct {
	Args     []string
	ExitCode int
	Output   []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if len(e.Output) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Output, " "))
	}
	return msg
}

// ExitCode reports the exit status carried by err, or -1 when err did not
// come from a finished process.
func ExitCode(err error) int {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

// ExecRunner runs programs on the host. A zero Timeout means the caller's
// context is the only bound.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner bounding each invocation by timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &Error{
				Args:     append([]string{name}, args...),
				ExitCode: exitErr.ExitCode(),
				Output:   splitLines(stdout.String() + stderr.String()),
			}
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
