// Package notify announces finished update runs to other systems.
package notify

import (
	"context"
	"time"
)

// RunEvent is the JSON payload published after every run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Tag        string    `json:"tag,omitempty"`
	Stamp      string    `json:"stamp"`
	Repository string    `json:"repository"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Notifier publishes run events. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, event RunEvent) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, RunEvent) error { return nil }
func (Noop) Close() error                           { return nil }
