package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
)

func writeConfig(t *testing.T, path, schedule string) {
	t.Helper()
	content := "repository:\n  path: /srv/sorry-db-data\ndaemon:\n  schedule: \"" + schedule + "\"\n"
	// Replace atomically so the watcher never observes a half-written file.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorrydb-sync.yaml")
	writeConfig(t, path, "0 3 * * *")

	applied := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(_ context.Context, cfg *config.Config) error {
		applied <- cfg
		return nil
	})
	require.NoError(t, err)
	cw.WithDebounce(20 * time.Millisecond)

	require.NoError(t, cw.Start(context.Background()))
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })
	require.True(t, cw.Health().IsHealthy())

	writeConfig(t, path, "30 5 * * *")

	// A write can surface as several events; wait for the reload that sees the new content.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-applied:
			if cfg.Daemon.Schedule != "30 5 * * *" {
				continue
			}
			require.Equal(t, "/srv/sorry-db-data", cfg.Repository.Path)
			return
		case <-timeout:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestConfigWatcherKeepsConfigOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorrydb-sync.yaml")
	writeConfig(t, path, "0 3 * * *")

	applied := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(_ context.Context, cfg *config.Config) error {
		applied <- cfg
		return nil
	})
	require.NoError(t, err)
	cw.WithDebounce(20 * time.Millisecond)

	require.NoError(t, cw.Start(context.Background()))
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	writeConfig(t, path, "whenever")

	require.Eventually(t, func() bool { return !cw.Health().IsHealthy() }, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, applied)
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sorrydb-sync.yaml")
	writeConfig(t, path, "0 3 * * *")

	applied := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(_ context.Context, cfg *config.Config) error {
		applied <- cfg
		return nil
	})
	require.NoError(t, err)
	cw.WithDebounce(10 * time.Millisecond)
	require.NoError(t, cw.Start(context.Background()))
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	require.Empty(t, applied)
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorrydb-sync.yaml")
	writeConfig(t, path, "0 3 * * *")
	cw, err := NewConfigWatcher(path, func(context.Context, *config.Config) error { return nil })
	require.NoError(t, err)

	require.False(t, cw.Health().IsHealthy())
	require.NoError(t, cw.Start(context.Background()))
	require.NoError(t, cw.Stop(context.Background()))
	require.NoError(t, cw.Stop(context.Background()))
	require.Equal(t, []string{"scheduler"}, cw.Dependencies())
}
