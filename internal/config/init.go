package config

import (
	"fmt"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

const exampleConfig = `# sorrydb-sync configuration
repository:
  # Local checkout of the data repository; bind-mounted into the container.
  path: ${HOME}/sorry-db-data
  backend: cli        # cli | go-git
  remote: origin      # used by go-git
  # author:
  #   name: SorryDB Bot
  #   email: bot@example.org
  # auth:
  #   type: token
  #   token: ${SORRYDB_GIT_TOKEN}

container:
  runtime: docker
  image: sorrydb:latest
  mount_target: /data
  database_file: /data/sorry_database.json
  stats_file: /data/update_database_stats.json
  deduplicated_file: /data/deduplicated_sorries.json
  log_dir: /data/logs
  log_level: DEBUG
  tool_prefix: [poetry, run]
  remove: true

daemon:
  schedule: "0 3 * * *"
  run_on_start: false
  metrics_addr: ":9464"
  data_dir: ./sorrydb-sync-data

metrics:
  # pushgateway_url: http://localhost:9091
  job: sorrydb_sync

notify:
  # nats_url: nats://localhost:4222
  subject: sorrydb.updates

history:
  # path: ./sorrydb-sync-data/history.db
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext(ferrors.KeyPath, configPath).
			Build()
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to create config directory").Build()
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to write config file").
			WithContext(ferrors.KeyPath, configPath).
			Build()
	}
	return nil
}
