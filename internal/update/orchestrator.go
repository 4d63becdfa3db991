package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	"git.home.luguber.info/inful/sorrydb-sync/internal/container"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/metrics"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
	"git.home.luguber.info/inful/sorrydb-sync/internal/vcs"
)

// RepositoryOpener picks the version control backend for a validated repository directory.
type RepositoryOpener func(cfg config.RepositoryConfig, dir string, runner process.Runner, clock clockwork.Clock) (vcs.Repository, error)

// Orchestrator runs update runs for one configuration.
type Orchestrator struct {
	cfg      *config.Config
	runner   process.Runner
	open     RepositoryOpener
	clock    clockwork.Clock
	out      io.Writer
	recorder metrics.Recorder
	newRunID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

// WithOutput sets where progress narration is written (stdout by default).
func WithOutput(w io.Writer) Option { return func(o *Orchestrator) { o.out = w } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithRepositoryOpener replaces vcs.Open.
func WithRepositoryOpener(fn RepositoryOpener) Option { return func(o *Orchestrator) { o.open = fn } }

// WithRunID replaces the UUID run ID generator.
func WithRunID(fn func() string) Option { return func(o *Orchestrator) { o.newRunID = fn } }

// New creates an orchestrator. runner executes the container runtime and, for
// the cli backend, git.
func New(cfg *config.Config, runner process.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		runner:   runner,
		open:     vcs.Open,
		clock:    clockwork.NewRealClock(),
		out:      os.Stdout,
		recorder: metrics.NoopRecorder{},
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run performs one update run. The report is always returned; err is the
// first failure, already classified.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := o.clock.Now()
	rep := &Report{
		RunID:     o.newRunID(),
		Stamp:     NewStamp(start),
		StartedAt: start,
	}
	log := slog.With(logfields.RunID(rep.RunID))
	log.Info("Starting update run", logfields.Repository(o.cfg.Repository.Path), slog.String("stamp", rep.Stamp.Full()))

	err := o.run(ctx, rep, log)

	rep.FinishedAt = o.clock.Now()
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Err = err
	}

	o.recorder.ObserveRunDuration(rep.Duration())
	o.recorder.IncRunOutcome(string(rep.Outcome))
	if err == nil {
		o.recorder.SetLastSuccess(rep.FinishedAt)
	}

	attrs := []any{logfields.Outcome(string(rep.Outcome)), logfields.Duration(rep.Duration())}
	if rep.Tag != "" {
		attrs = append(attrs, logfields.Tag(rep.Tag))
	}
	if err != nil {
		log.Error("Update run failed", append(attrs, logfields.Error(err))...)
	} else {
		log.Info("Update run finished", attrs...)
	}
	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, rep *Report, log *slog.Logger) error {
	var repo vcs.Repository
	if err := o.step(rep, StepEnterRepository, func() error {
		dir, err := EnterRepository(o.cfg.Repository.Path)
		if err != nil {
			return err
		}
		rep.Repository = dir
		repo, err = o.open(o.cfg.Repository, dir, o.runner, o.clock)
		return err
	}); err != nil {
		return err
	}

	o.say(rep.Stamp.LogFileName())

	o.say("Updating database...")
	logPath := container.LogPath(o.cfg.Container, rep.Stamp.LogFileName())
	job := container.NewUpdateJob(o.cfg.Container, rep.Repository, logPath)
	if _, err := container.NewRunner(o.runner, o.containerObserver(rep)).Run(ctx, job); err != nil {
		return err
	}

	o.say("Staging changes...")
	if err := o.step(rep, StepStage, func() error { return repo.Stage(ctx) }); err != nil {
		return err
	}

	var changed bool
	if err := o.step(rep, StepDetectChanges, func() error {
		var err error
		changed, err = repo.HasStagedChanges(ctx)
		return err
	}); err != nil {
		return err
	}

	if !changed {
		o.say("No changes to commit")
		rep.Outcome = OutcomeNoChanges
		return nil
	}

	o.say("Committing changes...")
	if err := o.step(rep, StepCommit, func() error { return repo.Commit(ctx, rep.Stamp.CommitMessage()) }); err != nil {
		return err
	}

	o.say("Creating tag with today's date...")
	if err := o.step(rep, StepTag, func() error { return repo.Tag(ctx, rep.Stamp.Date(), rep.Stamp.TagMessage()) }); err != nil {
		return err
	}
	rep.Tag = rep.Stamp.Date()

	o.say("Pushing changes and tags...")
	if err := o.step(rep, StepPush, func() error { return repo.Push(ctx) }); err != nil {
		return err
	}
	if err := o.step(rep, StepPushTags, func() error { return repo.PushTags(ctx) }); err != nil {
		log.Warn("Commits were pushed but tags were not; the remote is missing the new tag",
			logfields.Tag(rep.Tag))
		return err
	}

	o.say("Successfully updated, committed, tagged, and pushed changes")
	rep.Outcome = OutcomeUpdated
	return nil
}

// step runs fn as a named step and records it.
func (o *Orchestrator) step(rep *Report, name string, fn func() error) error {
	start := o.clock.Now()
	err := fn()
	code := 0
	if err != nil {
		code = -1
		if c, ok := process.ExitCode(err); ok {
			code = c
		}
	}
	o.record(rep, StepRecord{Name: name, Duration: o.clock.Since(start), ExitCode: code, Err: err})
	return err
}

func (o *Orchestrator) containerObserver(rep *Report) container.StepObserver {
	return func(step string, res *process.Result, err error) {
		rec := StepRecord{Name: step, ExitCode: -1, Err: err}
		if res != nil {
			rec.ExitCode = res.ExitCode
			rec.Duration = res.Duration
		}
		o.record(rep, rec)
	}
}

func (o *Orchestrator) record(rep *Report, rec StepRecord) {
	rep.Steps = append(rep.Steps, rec)
	o.recorder.ObserveStepDuration(rec.Name, rec.Duration)
	o.recorder.IncStepResult(rec.Name, resultLabel(rec.Err))
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}

func (o *Orchestrator) say(line string) {
	_, _ = fmt.Fprintln(o.out, line)
}
