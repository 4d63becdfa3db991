package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
)

// Runner executes invocations one at a time.
//
// Run returns an error only when the program could not be run at all (missing
// executable, start failure, cancellation). A program that ran and exited
// non-zero yields a Result with that ExitCode and a nil error.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// ExecRunner runs invocations with os/exec, capturing output while forwarding it live.
type ExecRunner struct {
	stdout  io.Writer
	stderr  io.Writer
	forward bool
}

// NewExecRunner creates a runner that forwards child output to the given writers.
// Nil writers discard the forwarded copy; the output is captured either way.
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	forward := stdout != nil || stderr != nil
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &ExecRunner{stdout: stdout, stderr: stderr, forward: forward}
}

// NewStdRunner forwards child output to the process's own stdout and stderr.
func NewStdRunner() *ExecRunner {
	return NewExecRunner(os.Stdout, os.Stderr)
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	// #nosec G204 -- program and arguments come from configuration, not from untrusted input
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, r.stdout)
	cmd.Stderr = io.MultiWriter(&stderr, r.stderr)

	slog.Debug("Running command", logfields.Command(inv.String()), logfields.Path(inv.Dir))

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Invocation: inv,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Duration:   time.Since(start),
		Forwarded:  r.forward,
	}

	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, ferrors.WrapError(ctx.Err(), ferrors.CategoryProcess, "command cancelled").
			Fatal().
			WithContext(ferrors.KeyCommand, inv.String()).
			Build()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		slog.Debug("Command exited non-zero",
			logfields.Command(inv.String()),
			logfields.ExitCode(res.ExitCode),
			logfields.Duration(res.Duration))
		return res, nil
	case isNotFound(err):
		res.ExitCode = -1
		return res, NotFound(inv, err)
	default:
		res.ExitCode = -1
		return res, ferrors.WrapError(err, ferrors.CategoryProcess, "failed to start command").
			Fatal().
			WithContext(ferrors.KeyCommand, inv.String()).
			WithContext(ferrors.KeyProgram, inv.Program).
			Build()
	}
}

// isNotFound reports a missing executable. A missing working directory also
// surfaces as ErrNotExist but through a chdir PathError, which is not this case.
func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Op != "chdir" && errors.Is(pathErr.Err, fs.ErrNotExist)
	}
	return false
}
