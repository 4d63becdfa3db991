package process

import (
	"context"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// NotFound builds the classified error for a program that is absent from PATH.
func NotFound(inv Invocation, cause error) error {
	return ferrors.WrapError(cause, ferrors.CategoryNotFound, "executable not found").
		Fatal().
		UserAction().
		WithContext(ferrors.KeyProgram, inv.Program).
		WithContext(ferrors.KeyCommand, inv.String()).
		Build()
}

// Failed builds the classified error for a program that exited non-zero.
func Failed(res *Result) error {
	return ferrors.ProcessError("command exited with non-zero status").
		WithContext(ferrors.KeyCommand, res.Invocation.String()).
		WithContext(ferrors.KeyProgram, res.Invocation.Program).
		WithContext(ferrors.KeyExitCode, res.ExitCode).
		WithContext(ferrors.KeyStdout, res.Stdout).
		WithContext(ferrors.KeyStderr, res.Stderr).
		WithContext(ferrors.KeyForwarded, res.Forwarded).
		Build()
}

// Checked runs inv and treats any non-zero exit status as a failure.
func Checked(ctx context.Context, r Runner, inv Invocation) (*Result, error) {
	res, err := r.Run(ctx, inv)
	if err != nil {
		return res, err
	}
	if !res.Success() {
		return res, Failed(res)
	}
	return res, nil
}

// ExitCode extracts the exit status recorded on a process failure, if any.
func ExitCode(err error) (int, bool) {
	if c, ok := ferrors.AsClassified(err); ok {
		return c.Context().GetInt(ferrors.KeyExitCode)
	}
	return 0, false
}
