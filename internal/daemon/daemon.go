// Package daemon runs update runs on a cron schedule and exposes their
// metrics and health over HTTP.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/metrics"
	"git.home.luguber.info/inful/sorrydb-sync/internal/services"
	"git.home.luguber.info/inful/sorrydb-sync/internal/update"
)

// UpdateJobName is the gocron job name of the scheduled update run.
const UpdateJobName = "sorrydb-update"

const shutdownTimeout = 30 * time.Second

// RunFunc performs one update run with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config) (*update.Report, error)

// Daemon owns the scheduler and the supporting services.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
	run        RunFunc
	registry   *prom.Registry
	clock      clockwork.Clock

	scheduler *Scheduler
	services  *services.ServiceOrchestrator
	http      *HTTPServer
	watcher   *ConfigWatcher
	debounce  time.Duration
	overrides []func(*config.Config)

	runCtx    context.Context
	jobID     string
	startedAt time.Time

	lastReport *update.Report
	lastErr    error
	runCount   atomic.Int64
	running    atomic.Bool
	stopped    chan struct{}
	stopOnce   sync.Once
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithRegistry sets the registry served on /metrics.
func WithRegistry(reg *prom.Registry) Option { return func(d *Daemon) { d.registry = reg } }

// WithClock drives the scheduler and timestamps from c.
func WithClock(c clockwork.Clock) Option { return func(d *Daemon) { d.clock = c } }

// WithReloadDebounce overrides the config watcher debounce window.
func WithReloadDebounce(wait time.Duration) Option { return func(d *Daemon) { d.debounce = wait } }

// WithOverrides registers command-line overrides. They are reapplied to every
// reloaded configuration so flags keep precedence over the file.
func WithOverrides(fns ...func(*config.Config)) Option {
	return func(d *Daemon) { d.overrides = append(d.overrides, fns...) }
}

// New creates a daemon. configPath may be empty, which disables reloads.
func New(cfg *config.Config, configPath string, run RunFunc, opts ...Option) (*Daemon, error) {
	if cfg == nil || run == nil {
		return nil, ferrors.InternalError("daemon requires a configuration and a run function").Build()
	}
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		run:        run,
		clock:      clockwork.NewRealClock(),
		debounce:   2 * time.Second,
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = metrics.NewDaemonRegistry()
	}

	sched, err := NewScheduler(gocron.WithClock(d.clock))
	if err != nil {
		return nil, err
	}
	d.scheduler = sched
	d.services = services.NewServiceOrchestrator()
	return d, nil
}

// Start schedules the update job, starts every service and optionally
// triggers an immediate run. ctx bounds the runs themselves.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ferrors.DaemonError("daemon already started").Build()
	}
	cfg := d.Config()
	d.runCtx = ctx
	d.startedAt = d.clock.Now()

	jobID, err := d.scheduler.ScheduleCron(UpdateJobName, cfg.Daemon.Schedule, d.execute)
	if err != nil {
		d.running.Store(false)
		return err
	}
	d.jobID = jobID

	if err := d.registerServices(cfg); err != nil {
		d.running.Store(false)
		return err
	}
	if err := d.services.StartAll(ctx); err != nil {
		d.running.Store(false)
		return err
	}

	slog.Info("Daemon started",
		logfields.Schedule(cfg.Daemon.Schedule),
		logfields.Repository(cfg.Repository.Path),
		slog.Bool("run_on_start", cfg.Daemon.RunOnStart))

	if cfg.Daemon.RunOnStart {
		if err := d.scheduler.RunNow(d.jobID); err != nil {
			slog.Warn("Failed to trigger initial run", logfields.Error(err))
		}
	}
	return nil
}

func (d *Daemon) registerServices(cfg *config.Config) error {
	svcs := []services.ManagedService{d.scheduler}

	if cfg.Daemon.MetricsAddr != "" {
		d.http = NewHTTPServer(cfg.Daemon.MetricsAddr, d.Handler())
		svcs = append(svcs, d.http)
	}
	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.ReloadConfig)
		if err != nil {
			return err
		}
		d.watcher = watcher.WithDebounce(d.debounce)
		svcs = append(svcs, d.watcher)
	}

	for _, svc := range svcs {
		if res := d.services.RegisterService(svc); res.IsErr() {
			return res.UnwrapErr()
		}
	}
	return nil
}

// Handler serves /metrics and /healthz.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", d.handleHealth)
	return mux
}

// Stop stops all services, waiting for an in-flight run to return.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	slog.Info("Stopping daemon")
	err := d.services.StopAll(ctx)
	d.stopOnce.Do(func() { close(d.stopped) })
	return err
}

// Run starts the daemon and blocks until ctx is cancelled, then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-d.stopped:
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// HTTPAddr returns the bound metrics address, or "" when HTTP is disabled.
func (d *Daemon) HTTPAddr() string {
	if d.http == nil {
		return ""
	}
	return d.http.Addr()
}

// NextRun returns when the update job fires next.
func (d *Daemon) NextRun() (time.Time, error) {
	return d.scheduler.NextRun(d.jobID)
}

// ReloadConfig swaps in newCfg. A changed schedule moves the update job; a
// changed metrics address only takes effect after a restart.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	for _, override := range d.overrides {
		override(newCfg)
	}

	d.mu.Lock()
	old := d.cfg
	d.mu.Unlock()

	if newCfg.Daemon.Schedule != old.Daemon.Schedule && d.jobID != "" {
		if err := d.scheduler.Reschedule(d.jobID, newCfg.Daemon.Schedule); err != nil {
			return err
		}
	}
	if newCfg.Daemon.MetricsAddr != old.Daemon.MetricsAddr {
		slog.Warn("metrics_addr changed; restart the daemon to apply",
			slog.String("current", old.Daemon.MetricsAddr),
			slog.String("configured", newCfg.Daemon.MetricsAddr))
	}

	d.mu.Lock()
	d.cfg = newCfg
	d.mu.Unlock()
	return nil
}

// execute is the scheduled task. gocron singleton mode keeps it from overlapping.
func (d *Daemon) execute() {
	ctx := d.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := d.Config()
	n := d.runCount.Add(1)

	slog.Info("Scheduled update run starting", slog.Int64("run", n))
	rep, err := d.run(ctx, cfg)

	d.mu.Lock()
	d.lastReport = rep
	d.lastErr = err
	d.mu.Unlock()

	if err != nil {
		slog.Error("Scheduled update run failed", logfields.Error(err))
		return
	}
	if rep != nil {
		slog.Info("Scheduled update run finished",
			logfields.RunID(rep.RunID),
			logfields.Outcome(string(rep.Outcome)),
			logfields.Duration(rep.Duration()))
	}
}

// LastRun returns the report and error of the most recent run.
func (d *Daemon) LastRun() (*update.Report, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastReport, d.lastErr
}

// RunCount is the number of runs started since the daemon started.
func (d *Daemon) RunCount() int64 { return d.runCount.Load() }
