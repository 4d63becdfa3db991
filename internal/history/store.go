// Package history persists a summary of every update run.
package history

import (
	"context"
	"time"
)

// Step is the recorded outcome of one run step.
type Step struct {
	Name       string `json:"name"`
	ExitCode   int    `json:"exit_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Run is one recorded update run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	// Stamp is the run timestamp embedded in commit and tag messages.
	Stamp   string
	Tag     string
	Outcome string
	Error   string
	Steps   []Step
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store records runs and lists the most recent ones.
type Store interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
