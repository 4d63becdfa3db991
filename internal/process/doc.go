// Package process runs external programs synchronously and reports their outcome.
//
// A Runner executes one Invocation at a time and always returns the exit status
// with the captured output. Whether a non-zero status is a failure is the
// caller's decision: Checked turns it into a classified process error, while
// callers that treat the exit status as a signal (git diff --quiet) inspect
// Result.ExitCode directly.
package process
