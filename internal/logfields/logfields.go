package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyImage      = "image"
	KeyTag        = "tag"
	KeyOutcome    = "outcome"
	KeySchedule   = "schedule"
	KeyJobID      = "job_id"
	KeyPath       = "path"
	KeyError      = "error"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Command(cmd string) slog.Attr    { return slog.String(KeyCommand, cmd) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Repository(p string) slog.Attr   { return slog.String(KeyRepo, p) }
func Image(ref string) slog.Attr      { return slog.String(KeyImage, ref) }
func Tag(name string) slog.Attr       { return slog.String(KeyTag, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Schedule(expr string) slog.Attr  { return slog.String(KeySchedule, expr) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
