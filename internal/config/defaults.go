package config

import "path/filepath"

// Defaults mirror the paths baked into the sorrydb image.
const (
	DefaultRepositoryPath   = "."
	DefaultRemote           = "origin"
	DefaultRuntime          = "docker"
	DefaultImage            = "sorrydb:latest"
	DefaultMountTarget      = "/data"
	DefaultDatabaseFile     = "/data/sorry_database.json"
	DefaultStatsFile        = "/data/update_database_stats.json"
	DefaultDeduplicatedFile = "/data/deduplicated_sorries.json"
	DefaultLogDir           = "/data/logs"
	DefaultLogLevel         = "DEBUG"
	DefaultSchedule         = "0 3 * * *"
	DefaultMetricsAddr      = ":9464"
	DefaultDataDir          = "./sorrydb-sync-data"
	DefaultMetricsJob       = "sorrydb_sync"
	DefaultSubject          = "sorrydb.updates"
	historyFileName         = "history.db"
)

// DefaultToolPrefix runs the update tools through poetry inside the image.
func DefaultToolPrefix() []string { return []string{"poetry", "run"} }

// ApplyDefaults fills every unset field. It is idempotent.
func ApplyDefaults(cfg *Config) {
	r := &cfg.Repository
	if r.Path == "" {
		r.Path = DefaultRepositoryPath
	}
	if b, err := ParseBackend(string(r.Backend)); err == nil {
		r.Backend = b
	}
	if r.Remote == "" {
		r.Remote = DefaultRemote
	}

	c := &cfg.Container
	setDefault(&c.Runtime, DefaultRuntime)
	setDefault(&c.Image, DefaultImage)
	setDefault(&c.MountTarget, DefaultMountTarget)
	setDefault(&c.DatabaseFile, DefaultDatabaseFile)
	setDefault(&c.StatsFile, DefaultStatsFile)
	setDefault(&c.DeduplicatedFile, DefaultDeduplicatedFile)
	setDefault(&c.LogDir, DefaultLogDir)
	setDefault(&c.LogLevel, DefaultLogLevel)
	if c.ToolPrefix == nil {
		c.ToolPrefix = DefaultToolPrefix()
	}

	d := &cfg.Daemon
	setDefault(&d.Schedule, DefaultSchedule)
	setDefault(&d.MetricsAddr, DefaultMetricsAddr)
	setDefault(&d.DataDir, DefaultDataDir)

	setDefault(&cfg.Metrics.Job, DefaultMetricsJob)
	setDefault(&cfg.Notify.Subject, DefaultSubject)
}

// DaemonHistoryPath is where the daemon records runs when history.path is unset.
func (c *Config) DaemonHistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Daemon.DataDir, historyFileName)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
