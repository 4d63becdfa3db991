// Package errors provides the classified error primitives used across sorrydb-sync.
//
// Every failure that can abort an update run is expressed as a ClassifiedError so that
// a single top-level handler (CLIErrorAdapter) decides what is printed and how the
// process exits. Orchestration code never terminates the process itself.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryProcess, "command exited with non-zero status").
//		WithContext("command", "git push").
//		WithContext("exit_code", 1).
//		WithCause(exitErr).
//		Build()
package errors
