package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/robfig/cron/v3"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// validLogLevels are the levels understood by the update tools' logging setup.
var validLogLevels = map[string]struct{}{
	"DEBUG": {}, "INFO": {}, "WARNING": {}, "ERROR": {}, "CRITICAL": {},
}

// Validate checks a defaulted configuration and reports every problem at once.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	v.validateRepository()
	v.validateContainer()
	v.validateDaemon()
	v.validateIntegrations()

	if len(v.problems) == 0 {
		return nil
	}
	return ferrors.WrapError(errors.Join(v.problems...), ferrors.CategoryConfig, "invalid configuration").
		Fatal().
		UserAction().
		WithContext("problems", len(v.problems)).
		Build()
}

type configurationValidator struct {
	config   *Config
	problems []error
}

func (cv *configurationValidator) addf(format string, args ...any) {
	cv.problems = append(cv.problems, fmt.Errorf(format, args...))
}

func (cv *configurationValidator) validateRepository() {
	r := cv.config.Repository
	if strings.TrimSpace(r.Path) == "" {
		cv.addf("repository.path must not be empty")
	}
	if _, err := ParseBackend(string(r.Backend)); err != nil {
		cv.addf("repository.backend: %w", err)
	}
	if r.Backend == BackendGoGit && r.Remote == "" {
		cv.addf("repository.remote is required for the go-git backend")
	}
	if r.Auth != nil {
		switch r.Auth.Type {
		case "", AuthTypeNone:
		case AuthTypeToken:
			if r.Auth.Token == "" {
				cv.addf("repository.auth.token is required for token auth")
			}
		case AuthTypeBasic:
			if r.Auth.Username == "" || r.Auth.Password == "" {
				cv.addf("repository.auth.username and password are required for basic auth")
			}
		case AuthTypeSSH:
		default:
			cv.addf("repository.auth.type %q is not supported", r.Auth.Type)
		}
	}
}

func (cv *configurationValidator) validateContainer() {
	c := cv.config.Container
	if strings.TrimSpace(c.Runtime) == "" {
		cv.addf("container.runtime must not be empty")
	}
	if strings.TrimSpace(c.Image) == "" {
		cv.addf("container.image must not be empty")
	}

	// In-container paths are POSIX regardless of the host OS.
	for field, p := range map[string]string{
		"container.mount_target":      c.MountTarget,
		"container.database_file":     c.DatabaseFile,
		"container.stats_file":        c.StatsFile,
		"container.deduplicated_file": c.DeduplicatedFile,
		"container.log_dir":           c.LogDir,
	} {
		if !path.IsAbs(p) {
			cv.addf("%s must be an absolute in-container path, got %q", field, p)
		}
	}

	if _, ok := validLogLevels[strings.ToUpper(c.LogLevel)]; !ok {
		cv.addf("container.log_level %q is not one of DEBUG, INFO, WARNING, ERROR, CRITICAL", c.LogLevel)
	}
}

func (cv *configurationValidator) validateDaemon() {
	schedule := strings.TrimSpace(cv.config.Daemon.Schedule)
	if schedule == "" {
		cv.addf("daemon.schedule must not be empty")
		return
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		cv.addf("daemon.schedule %q is not a valid cron expression: %w", schedule, err)
	}
}

func (cv *configurationValidator) validateIntegrations() {
	if u := cv.config.Metrics.PushgatewayURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			cv.addf("metrics.pushgateway_url %q must be an absolute URL", u)
		}
	}
	if cv.config.Notify.Enabled() && strings.TrimSpace(cv.config.Notify.Subject) == "" {
		cv.addf("notify.subject must not be empty when notify.nats_url is set")
	}
}
