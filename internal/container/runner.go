package container

import (
	"context"
	"log/slog"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
)

// StepObserver is told about every finished step. It may be nil.
type StepObserver func(step string, res *process.Result, err error)

// Runner executes jobs through a process.Runner.
type Runner struct {
	proc    process.Runner
	observe StepObserver
}

// NewRunner creates a container runner.
func NewRunner(proc process.Runner, observe StepObserver) *Runner {
	return &Runner{proc: proc, observe: observe}
}

// Run executes the job's steps in order and stops at the first failure.
// The results of every attempted step are returned, including the failing one.
func (r *Runner) Run(ctx context.Context, job Job) ([]*process.Result, error) {
	if len(job.Steps) == 0 {
		return nil, ferrors.ContainerError("container job has no steps").
			WithContext("image", job.Image).
			Build()
	}

	results := make([]*process.Result, 0, len(job.Steps))
	for _, step := range job.Steps {
		inv := job.Invocation(step)
		slog.Info("Running container step",
			logfields.Step(step.Name),
			logfields.Image(job.Image),
			logfields.Command(inv.String()))

		res, err := process.Checked(ctx, r.proc, inv)
		if res != nil {
			results = append(results, res)
		}
		if r.observe != nil {
			r.observe(step.Name, res, err)
		}
		if err != nil {
			return results, annotate(err, step.Name)
		}
		slog.Debug("Container step finished", logfields.Step(step.Name), logfields.Duration(res.Duration))
	}
	return results, nil
}

// annotate records the failing step on classified errors and leaves others alone.
func annotate(err error, step string) error {
	if c, ok := ferrors.AsClassified(err); ok {
		return c.WithContext(ferrors.KeyStep, step)
	}
	return ferrors.WrapError(err, ferrors.CategoryContainer, "container step failed").
		Fatal().
		WithContext(ferrors.KeyStep, step).
		Build()
}
