// Package cli implements the commands behind the sorrydb-sync binary.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	"git.home.luguber.info/inful/sorrydb-sync/internal/daemon"
	"git.home.luguber.info/inful/sorrydb-sync/internal/foundation"
	"git.home.luguber.info/inful/sorrydb-sync/internal/history"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/metrics"
	"git.home.luguber.info/inful/sorrydb-sync/internal/notify"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
	"git.home.luguber.info/inful/sorrydb-sync/internal/update"
)

const pushTimeout = 10 * time.Second

// CommandExecutor runs the CLI commands.
type CommandExecutor interface {
	ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error]
	ExecuteDaemon(ctx context.Context, req DaemonRequest) foundation.Result[DaemonResponse, error]
	ExecuteInit(ctx context.Context, req InitRequest) foundation.Result[InitResponse, error]
	ExecuteHistory(ctx context.Context, req HistoryRequest) foundation.Result[HistoryResponse, error]
}

// Request/Response types for each command

type RunRequest struct {
	ConfigPath string
	// Repo, Image and Backend override the configuration when set.
	Repo    string
	Image   string
	Backend string
}

type RunResponse struct {
	Report *update.Report
}

type DaemonRequest struct {
	ConfigPath string
	Schedule   string
	RunNow     bool
}

type DaemonResponse struct {
	StartTime time.Time
	Runs      int64
	Stopped   bool
}

type InitRequest struct {
	ConfigPath string
	Force      bool
}

type InitResponse struct {
	ConfigPath string
	Created    bool
}

type HistoryRequest struct {
	ConfigPath string
	Limit      int
}

type HistoryResponse struct {
	Path string
	Runs []history.Run
}

// DefaultCommandExecutor implements the CommandExecutor interface.
type DefaultCommandExecutor struct {
	runner      process.Runner
	out         io.Writer
	clock       clockwork.Clock
	openRepo    update.RepositoryOpener
	newNotifier func(config.NotifyConfig) notify.Notifier
	openHistory func(path string) (history.Store, error)
	daemonOpts  []daemon.Option
}

// ExecutorOption customizes the executor.
type ExecutorOption func(*DefaultCommandExecutor)

// WithRunner replaces the os/exec runner.
func WithRunner(r process.Runner) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.runner = r }
}

// WithOutput sets where run narration goes.
func WithOutput(w io.Writer) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.out = w }
}

// WithClock replaces the wall clock used for run timestamps.
func WithClock(c clockwork.Clock) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.clock = c }
}

// WithRepositoryOpener replaces the version control backend factory.
func WithRepositoryOpener(fn update.RepositoryOpener) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.openRepo = fn }
}

// WithNotifierFactory replaces notify.New.
func WithNotifierFactory(fn func(config.NotifyConfig) notify.Notifier) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.newNotifier = fn }
}

// WithDaemonOptions passes options through to daemon.New.
func WithDaemonOptions(opts ...daemon.Option) ExecutorOption {
	return func(e *DefaultCommandExecutor) { e.daemonOpts = append(e.daemonOpts, opts...) }
}

// NewCommandExecutor creates an executor that runs real processes.
func NewCommandExecutor(opts ...ExecutorOption) *DefaultCommandExecutor {
	e := &DefaultCommandExecutor{
		runner:      process.NewStdRunner(),
		out:         os.Stdout,
		clock:       clockwork.NewRealClock(),
		newNotifier: notify.New,
		openHistory: func(path string) (history.Store, error) { return history.NewSQLiteStore(path) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteRun performs a single update run. A failed run still returns its report.
func (e *DefaultCommandExecutor) ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error] {
	cfg, err := loadRunConfig(req)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled() {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	var store history.Store
	if cfg.History.Enabled() {
		store, err = e.openHistory(cfg.History.Path)
		if err != nil {
			return foundation.Err[RunResponse](err)
		}
		defer closeQuietly(store, "history store")
	}

	notifier := e.newNotifier(cfg.Notify)
	defer closeQuietly(notifier, "notifier")

	rep, runErr := e.runOnce(ctx, cfg, recorder, store, notifier)

	if prom != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, prom.Registry()); err != nil {
			slog.Warn("Failed to push run metrics", logfields.Error(err))
		}
		cancel()
	}

	if runErr != nil {
		return foundation.ErrWith(RunResponse{Report: rep}, runErr)
	}
	return foundation.Ok[RunResponse, error](RunResponse{Report: rep})
}

func loadRunConfig(req RunRequest) (*config.Config, error) {
	cfg, err := config.Load(req.ConfigPath)
	if err != nil {
		return nil, err
	}
	if req.Repo == "" && req.Image == "" && req.Backend == "" {
		return cfg, nil
	}

	if req.Repo != "" {
		cfg.Repository.Path = req.Repo
	}
	if req.Image != "" {
		cfg.Container.Image = req.Image
	}
	if req.Backend != "" {
		b, err := config.ParseBackend(req.Backend)
		if err != nil {
			return nil, err
		}
		cfg.Repository.Backend = b
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runOnce runs the orchestrator, then records and announces the result.
// History and notification failures are logged and never fail the run.
func (e *DefaultCommandExecutor) runOnce(ctx context.Context, cfg *config.Config, recorder metrics.Recorder, store history.Store, notifier notify.Notifier) (*update.Report, error) {
	opts := []update.Option{
		update.WithClock(e.clock),
		update.WithOutput(e.out),
		update.WithRecorder(recorder),
	}
	if e.openRepo != nil {
		opts = append(opts, update.WithRepositoryOpener(e.openRepo))
	}

	rep, runErr := update.New(cfg, e.runner, opts...).Run(ctx)

	// Bookkeeping happens even when a signal cancelled the run.
	bg := context.WithoutCancel(ctx)
	if store != nil {
		if err := store.Record(bg, HistoryRun(rep)); err != nil {
			slog.Warn("Failed to record run history", logfields.RunID(rep.RunID), logfields.Error(err))
		}
	}
	if notifier != nil {
		if err := notifier.Notify(bg, RunEvent(rep, cfg.Repository.Path)); err != nil {
			slog.Warn("Failed to publish run event", logfields.RunID(rep.RunID), logfields.Error(err))
		}
	}
	return rep, runErr
}

// ExecuteDaemon runs update runs on the configured schedule until ctx is cancelled.
func (e *DefaultCommandExecutor) ExecuteDaemon(ctx context.Context, req DaemonRequest) foundation.Result[DaemonResponse, error] {
	cfg, err := config.Load(req.ConfigPath)
	if err != nil {
		return foundation.Err[DaemonResponse](err)
	}
	overrides := daemonOverrides(req)
	overrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return foundation.Err[DaemonResponse](err)
	}

	historyPath := cfg.DaemonHistoryPath()
	store, err := e.openHistory(historyPath)
	if err != nil {
		return foundation.Err[DaemonResponse](err)
	}
	defer closeQuietly(store, "history store")

	notifier := e.newNotifier(cfg.Notify)
	defer closeQuietly(notifier, "notifier")

	recorder := metrics.NewPrometheusRecorder(metrics.NewDaemonRegistry())
	run := func(ctx context.Context, cfg *config.Config) (*update.Report, error) {
		return e.runOnce(ctx, cfg, recorder, store, notifier)
	}

	opts := append([]daemon.Option{
		daemon.WithRegistry(recorder.Registry()),
		daemon.WithOverrides(overrides),
	}, e.daemonOpts...)
	d, err := daemon.New(cfg, cfg.Source, run, opts...)
	if err != nil {
		return foundation.Err[DaemonResponse](err)
	}

	start := e.clock.Now()
	slog.Info("Starting daemon mode",
		logfields.Schedule(cfg.Daemon.Schedule),
		slog.String("history", historyPath),
		slog.String("metrics_addr", cfg.Daemon.MetricsAddr))

	if err := d.Run(ctx); err != nil {
		return foundation.Err[DaemonResponse](err)
	}

	slog.Info("Daemon stopped successfully")
	return foundation.Ok[DaemonResponse, error](DaemonResponse{StartTime: start, Runs: d.RunCount(), Stopped: true})
}

// daemonOverrides returns the flag overrides of req. The daemon reapplies them
// on every config reload.
func daemonOverrides(req DaemonRequest) func(*config.Config) {
	return func(cfg *config.Config) {
		if req.Schedule != "" {
			cfg.Daemon.Schedule = req.Schedule
		}
		if req.RunNow {
			cfg.Daemon.RunOnStart = true
		}
	}
}

// ExecuteInit writes an example configuration file.
func (e *DefaultCommandExecutor) ExecuteInit(_ context.Context, req InitRequest) foundation.Result[InitResponse, error] {
	slog.Info("Initializing configuration", logfields.Path(req.ConfigPath), slog.Bool("force", req.Force))

	if err := config.Init(req.ConfigPath, req.Force); err != nil {
		return foundation.Err[InitResponse](err)
	}
	return foundation.Ok[InitResponse, error](InitResponse{ConfigPath: req.ConfigPath, Created: true})
}

// ExecuteHistory lists recorded runs, newest first. A missing history
// database yields an empty list.
func (e *DefaultCommandExecutor) ExecuteHistory(ctx context.Context, req HistoryRequest) foundation.Result[HistoryResponse, error] {
	cfg, err := config.Load(req.ConfigPath)
	if err != nil {
		return foundation.Err[HistoryResponse](err)
	}

	path := cfg.DaemonHistoryPath()
	resp := HistoryResponse{Path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return foundation.Ok[HistoryResponse, error](resp)
	}

	store, err := e.openHistory(path)
	if err != nil {
		return foundation.Err[HistoryResponse](err)
	}
	defer closeQuietly(store, "history store")

	limit := req.Limit
	if limit == 0 {
		limit = -1
	}
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return foundation.Err[HistoryResponse](err)
	}
	resp.Runs = runs
	return foundation.Ok[HistoryResponse, error](resp)
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Warn("Failed to close "+what, logfields.Error(err))
	}
}

// HistoryRun converts a run report into its persisted form.
func HistoryRun(rep *update.Report) history.Run {
	run := history.Run{
		ID:         rep.RunID,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Stamp:      rep.Stamp.Full(),
		Tag:        rep.Tag,
		Outcome:    string(rep.Outcome),
		Steps:      make([]history.Step, 0, len(rep.Steps)),
	}
	if rep.Err != nil {
		run.Error = rep.Err.Error()
	}
	for _, s := range rep.Steps {
		step := history.Step{Name: s.Name, ExitCode: s.ExitCode, DurationMS: s.Duration.Milliseconds()}
		if s.Err != nil {
			step.Error = s.Err.Error()
		}
		run.Steps = append(run.Steps, step)
	}
	return run
}

// RunEvent converts a run report into the published event. fallbackRepo is
// used when the run failed before the repository path was resolved.
func RunEvent(rep *update.Report, fallbackRepo string) notify.RunEvent {
	ev := notify.RunEvent{
		RunID:      rep.RunID,
		Outcome:    string(rep.Outcome),
		Tag:        rep.Tag,
		Stamp:      rep.Stamp.Full(),
		Repository: rep.Repository,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if ev.Repository == "" {
		ev.Repository = fallbackRepo
	}
	if rep.Err != nil {
		ev.Error = rep.Err.Error()
	}
	return ev
}

var _ CommandExecutor = (*DefaultCommandExecutor)(nil)
