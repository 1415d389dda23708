// Package command runs shell commands for the osc-based workflows and
// classifies their failures so that callers can retry the transient ones.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Result holds the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error is returned when a command exits nonzero and the caller did not ask
// for the exit code via KeepExitCode. It carries the full Result.
type Error struct {
	Cmd    string
	Result Result
}

func (e *Error) Error() string {
	return fmt.Sprintf("command %s failed (exit code %d) with stdout: %q, stderr: %q",
		e.Cmd, e.Result.ExitCode, e.Result.Stdout, e.Result.Stderr)
}

// Recoverable marks nonzero exits as retryable for Retry.
func (e *Error) Recoverable() bool { return true }

// TimeoutError is returned when a command exceeds its deadline. The child
// process has been killed by the time the error is returned.
type TimeoutError struct {
	Cmd     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", e.Cmd, e.Timeout)
}

// Logger is the subset of output.UI used for command diagnostics.
type Logger interface {
	Info(format string, a ...any)
	Error(format string, a ...any)
	VerboseLog(format string, a ...any)
}

// Runner executes shell commands with a common set of defaults, overridable
// per call via Options. The zero value runs in the current directory with
// the inherited environment and no timeout.
type Runner struct {
	// Dir is the default working directory.
	Dir string
	// Env, when non-nil, fully replaces the child environment.
	Env []string
	// Timeout is the default deadline per command; zero means none.
	Timeout time.Duration
	// KeepExitCode makes Run return nonzero results instead of failing.
	KeepExitCode bool
	// Log receives the command text and result when set.
	Log Logger
}

type runConfig struct {
	dir          string
	env          []string
	extraEnv     []string
	timeout      time.Duration
	keepExitCode bool
}

// Option overrides a Runner default for a single Run call.
type Option func(*runConfig)

// WithDir runs the command in dir.
func WithDir(dir string) Option { return func(c *runConfig) { c.dir = dir } }

// WithTimeout sets the deadline for this command.
func WithTimeout(d time.Duration) Option { return func(c *runConfig) { c.timeout = d } }

// WithEnv fully replaces the child environment. Entries are "KEY=value";
// nothing from the parent environment is carried over.
func WithEnv(env []string) Option { return func(c *runConfig) { c.env = env } }

// WithExtraEnv merges entries onto the inherited environment instead of
// replacing it.
func WithExtraEnv(env ...string) Option {
	return func(c *runConfig) { c.extraEnv = append(c.extraEnv, env...) }
}

// KeepExitCode makes Run return a nonzero Result instead of an *Error.
func KeepExitCode() Option { return func(c *runConfig) { c.keepExitCode = true } }

// Run executes cmdText through `sh -c`, so quoting, variables and pipes
// behave as on an interactive shell. Callers are expected to build the
// command text themselves and to quote untrusted parts.
//
// stdout and stderr are fully buffered; control returns only after the
// process has exited. A command that outlives its deadline is killed and
// reported as a *TimeoutError.
func (r *Runner) Run(ctx context.Context, cmdText string, opts ...Option) (Result, error) {
	cfg := runConfig{
		dir:          r.Dir,
		env:          r.Env,
		timeout:      r.Timeout,
		keepExitCode: r.KeepExitCode,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if r.Log != nil {
		r.Log.VerboseLog("running command %s", cmdText)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdText)
	cmd.Dir = cfg.dir
	switch {
	case cfg.env != nil:
		cmd.Env = cfg.env
	case len(cfg.extraEnv) > 0:
		cmd.Env = append(os.Environ(), cfg.extraEnv...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		// a deadline or cancellation only explains a failed run; a command
		// that already exited cleanly keeps its result
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return Result{}, &TimeoutError{Cmd: cmdText, Timeout: cfg.timeout}
			}
			return Result{}, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("start command %s: %w", cmdText, runErr)
		}
	}

	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if r.Log != nil {
		r.Log.VerboseLog("command terminated with %d, stdout: %s, stderr: %s",
			res.ExitCode, res.Stdout, res.Stderr)
	}
	if res.ExitCode != 0 && !cfg.keepExitCode {
		return res, &Error{Cmd: cmdText, Result: res}
	}
	return res, nil
}
