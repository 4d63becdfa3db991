package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// DefaultFile is looked up in the working directory when no --config flag is given.
const DefaultFile = "sorrydb-sync.yaml"

// Config is the complete runtime configuration, built once at startup and passed down explicitly.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Container  ContainerConfig  `yaml:"container"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Notify     NotifyConfig     `yaml:"notify"`
	History    HistoryConfig    `yaml:"history"`

	// Source is the file the config was read from; empty when only defaults apply.
	Source string `yaml:"-"`
}

// RepositoryConfig describes the local data repository that is refreshed and pushed.
type RepositoryConfig struct {
	Path    string       `yaml:"path"`
	Backend Backend      `yaml:"backend"`
	Remote  string       `yaml:"remote"`
	Author  AuthorConfig `yaml:"author"`
	Auth    *AuthConfig  `yaml:"auth,omitempty"`
}

// AuthorConfig is the identity used for commits and tags by the go-git backend.
type AuthorConfig struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// ContainerConfig describes the image and in-container paths of the update tools.
// All paths except the mount source are meaningful only inside the container.
type ContainerConfig struct {
	Runtime          string   `yaml:"runtime"`
	Image            string   `yaml:"image"`
	MountTarget      string   `yaml:"mount_target"`
	DatabaseFile     string   `yaml:"database_file"`
	StatsFile        string   `yaml:"stats_file"`
	DeduplicatedFile string   `yaml:"deduplicated_file"`
	LogDir           string   `yaml:"log_dir"`
	LogLevel         string   `yaml:"log_level"`
	ToolPrefix       []string `yaml:"tool_prefix"`
	Remove           *bool    `yaml:"remove,omitempty"`
}

// RemoveContainer reports whether containers are started with --rm.
func (c ContainerConfig) RemoveContainer() bool {
	return c.Remove == nil || *c.Remove
}

// DaemonConfig controls scheduled runs.
type DaemonConfig struct {
	Schedule    string `yaml:"schedule"`
	RunOnStart  bool   `yaml:"run_on_start"`
	MetricsAddr string `yaml:"metrics_addr"`
	DataDir     string `yaml:"data_dir"`
}

// MetricsConfig controls Prometheus export for one-shot runs.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	Job            string `yaml:"job"`
}

// Enabled reports whether one-shot runs push metrics.
func (m MetricsConfig) Enabled() bool { return m.PushgatewayURL != "" }

// NotifyConfig controls run event publishing.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// Enabled reports whether run events are published.
func (n NotifyConfig) Enabled() bool { return n.NATSURL != "" }

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Enabled reports whether runs are recorded.
func (h HistoryConfig) Enabled() bool { return h.Path != "" }

// Load reads configuration from path, then applies environment overrides, defaults and validation.
//
// An empty path means DefaultFile if it exists and built-in defaults otherwise.
// An explicitly named file that does not exist is an error.
func Load(path string) (*Config, error) {
	loadEnvFile()

	cfg := &Config{}
	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}

	if file != "" {
		if err := readFile(file, cfg); err != nil {
			return nil, err
		}
		cfg.Source = file
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext(ferrors.KeyPath, path).
				Build()
		}
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext(ferrors.KeyPath, path).
			Build()
	}

	// Expand ${VAR} references before decoding so secrets can live in the environment.
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config file").
			Fatal().
			WithContext(ferrors.KeyPath, path).
			Build()
	}
	return nil
}
