package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/services"
)

// ReloadFunc applies a freshly loaded and validated configuration.
type ReloadFunc func(ctx context.Context, cfg *config.Config) error

// ConfigWatcher monitors the configuration file and triggers debounced reloads.
// A reload that fails to load, validate or apply keeps the previous configuration.
type ConfigWatcher struct {
	configPath   string
	apply        ReloadFunc
	load         func(path string) (*config.Config, error)
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
	running      bool
	lastErr      error
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, apply ReloadFunc) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to resolve config path").
			WithContext(ferrors.KeyPath, configPath).
			Build()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		apply:        apply,
		load:         config.Load,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// WithDebounce overrides the debounce window (tests).
func (cw *ConfigWatcher) WithDebounce(d time.Duration) *ConfigWatcher {
	cw.debounceTime = d
	return cw
}

// Name implements services.ManagedService.
func (cw *ConfigWatcher) Name() string { return "config-watcher" }

// Dependencies implements services.ManagedService; reloads reschedule jobs.
func (cw *ConfigWatcher) Dependencies() []string { return []string{"scheduler"} }

// Health implements services.ManagedService.
func (cw *ConfigWatcher) Health() services.HealthStatus {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	switch {
	case !cw.running:
		return services.Unhealthy("config watcher not running")
	case cw.lastErr != nil:
		return services.Unhealthy("last reload failed: " + cw.lastErr.Error())
	default:
		return services.Healthy()
	}
}

// Start watches the directory containing the config file, which survives
// editors that replace the file on save.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create file watcher").Build()
	}
	configDir := filepath.Dir(cw.configPath)
	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to watch config directory").
			WithContext(ferrors.KeyPath, configDir).
			Build()
	}
	cw.watcher = watcher
	cw.running = true

	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	// The reload loop must outlive the start timeout context.
	loopCtx := context.WithoutCancel(ctx)
	go cw.watchLoop(loopCtx)
	go cw.reloadLoop(loopCtx)
	return nil
}

// Stop stops the configuration watcher.
func (cw *ConfigWatcher) Stop(_ context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return nil
	}
	cw.running = false

	slog.Info("Stopping configuration watcher")
	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Error("Error closing file watcher", logfields.Error(err))
	}
	return nil
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				slog.Warn("Config file removed; keeping current configuration", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer
	stopTimer := func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return
		case <-cw.stopChan:
			stopTimer()
			return
		case <-cw.reloadChan:
			stopTimer()
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				err := cw.performReload(ctx)
				cw.mu.Lock()
				cw.lastErr = err
				cw.mu.Unlock()
				if err != nil {
					slog.Error("Failed to reload configuration", logfields.Error(err))
				}
			})
		}
	}
}

// triggerReload requests a debounced reload; a pending request absorbs new ones.
func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("Reloading configuration", logfields.Path(cw.configPath))

	newConfig, err := cw.load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.apply(ctx, newConfig); err != nil {
		return err
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}
