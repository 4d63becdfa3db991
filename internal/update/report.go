package update

import (
	"time"

	"git.home.luguber.info/inful/sorrydb-sync/internal/container"
)

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeNoChanges Outcome = "no_changes"
	OutcomeFailed    Outcome = "failed"
)

// Step names, in execution order.
const (
	StepEnterRepository = "enter_repository"
	StepUpdateDB        = container.StepUpdateDB
	StepDeduplicateDB   = container.StepDeduplicateDB
	StepStage           = "stage"
	StepDetectChanges   = "detect_changes"
	StepCommit          = "commit"
	StepTag             = "tag"
	StepPush            = "push"
	StepPushTags        = "push_tags"
)

// StepRecord is what happened in one step.
type StepRecord struct {
	Name     string
	Duration time.Duration
	// ExitCode is set for steps backed by an external process; -1 when it never ran.
	ExitCode int
	Err      error
}

// Report summarizes a run. It is returned even when the run fails.
type Report struct {
	RunID      string
	Repository string
	Stamp      Stamp
	Outcome    Outcome
	// Tag is the created tag name; empty when no tag was created.
	Tag        string
	Steps      []StepRecord
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Step returns the record for name, if that step ran.
func (r *Report) Step(name string) (StepRecord, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepRecord{}, false
}

// Pushed reports whether the commit push completed, which matters when the
// tags push fails afterwards and local and remote tags diverge.
func (r *Report) Pushed() bool {
	s, ok := r.Step(StepPush)
	return ok && s.Err == nil
}
