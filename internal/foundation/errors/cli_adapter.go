package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Context keys shared between the packages that build errors and the CLI adapter that renders them.
const (
	KeyCommand   = "command"
	KeyProgram   = "program"
	KeyExitCode  = "exit_code"
	KeyStdout    = "stdout"
	KeyStderr    = "stderr"
	KeyPath      = "path"
	KeyStep      = "step"
	KeyForwarded = "forwarded" // process output already reached the terminal
)

// ExitFailure is the exit status for any aborted run.
const ExitFailure = 1

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter writing diagnostics to stderr.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// WithOutput redirects diagnostics (tests).
func (a *CLIErrorAdapter) WithOutput(w io.Writer) *CLIErrorAdapter {
	a.out = w
	return a
}

// WithExit replaces os.Exit (tests).
func (a *CLIErrorAdapter) WithExit(fn func(int)) *CLIErrorAdapter {
	a.exit = fn
	return a
}

// ExitCodeFor determines the exit code for an error. Every failure maps to 1.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return ExitFailure
}

// FormatError formats an error for display on stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	ctx := classified.Context()
	switch classified.Category() {
	case CategoryProcess:
		command, _ := ctx.GetString(KeyCommand)
		stdout, _ := ctx.GetString(KeyStdout)
		stderr, _ := ctx.GetString(KeyStderr)
		var b strings.Builder
		fmt.Fprintf(&b, "Error executing command: %s", command)
		if forwarded, _ := ctx.Get(KeyForwarded); forwarded == true {
			if code, ok := ctx.GetInt(KeyExitCode); ok {
				fmt.Fprintf(&b, "\nExit status: %d (output above)", code)
			}
			return b.String()
		}
		fmt.Fprintf(&b, "\nStdout: %s\n", stdout)
		fmt.Fprintf(&b, "Stderr: %s", stderr)
		return b.String()
	case CategoryNotFound:
		if program, ok := ctx.GetString(KeyProgram); ok {
			return fmt.Sprintf("Error: Command '%s' not found. Please ensure it is installed and in your PATH.", program)
		}
	}

	if a.verbose && classified.Cause() != nil {
		return fmt.Sprintf("Error: %s: %v", classified.Message(), classified.Cause())
	}
	return fmt.Sprintf("Error: %s", classified.Message())
}

// Report logs and prints err, returning the exit code without exiting.
func (a *CLIErrorAdapter) Report(err error) int {
	if err == nil {
		return 0
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	fmt.Fprintln(a.out, a.FormatError(err))
	return a.ExitCodeFor(err)
}

// HandleError processes an error and exits the program with the appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.exit(a.Report(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{
		slog.String("category", string(classified.Category())),
	}
	if step, ok := classified.Context().GetString(KeyStep); ok {
		attrs = append(attrs, slog.String(KeyStep, step))
	}
	if code, ok := classified.Context().GetInt(KeyExitCode); ok {
		attrs = append(attrs, slog.Int(KeyExitCode, code))
	}
	if classified.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if a.verbose && classified.Cause() != nil {
		attrs = append(attrs, slog.String("cause", classified.Cause().Error()))
	}

	a.logger.LogAttrs(context.Background(), a.slogLevelFromSeverity(classified.Severity()), classified.Message(), attrs...)
}

func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
