package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order; earlier files and the real environment win.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads KEY=VALUE pairs from .env files without overriding the process environment.
func loadEnvFile() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}

// envOverride binds an environment variable to a config field.
type envOverride struct {
	key   string
	apply func(cfg *Config, value string)
}

var envOverrides = []envOverride{
	{"SORRYDB_REPO_DIR", func(c *Config, v string) { c.Repository.Path = v }},
	{"SORRYDB_BACKEND", func(c *Config, v string) { c.Repository.Backend = Backend(v) }},
	{"SORRYDB_REMOTE", func(c *Config, v string) { c.Repository.Remote = v }},
	{"SORRYDB_IMAGE", func(c *Config, v string) { c.Container.Image = v }},
	{"SORRYDB_CONTAINER_RUNTIME", func(c *Config, v string) { c.Container.Runtime = v }},
	{"SORRYDB_LOG_LEVEL", func(c *Config, v string) { c.Container.LogLevel = v }},
	{"SORRYDB_SCHEDULE", func(c *Config, v string) { c.Daemon.Schedule = v }},
	{"SORRYDB_DATA_DIR", func(c *Config, v string) { c.Daemon.DataDir = v }},
	{"SORRYDB_PUSHGATEWAY_URL", func(c *Config, v string) { c.Metrics.PushgatewayURL = v }},
	{"SORRYDB_NATS_URL", func(c *Config, v string) { c.Notify.NATSURL = v }},
	{"SORRYDB_HISTORY_PATH", func(c *Config, v string) { c.History.Path = v }},
	{"SORRYDB_GIT_TOKEN", func(c *Config, v string) {
		if c.Repository.Auth == nil {
			c.Repository.Auth = &AuthConfig{Type: AuthTypeToken}
		}
		c.Repository.Auth.Token = v
	}},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			o.apply(cfg, v)
		}
	}
}
