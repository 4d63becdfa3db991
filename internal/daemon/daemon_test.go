package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	"git.home.luguber.info/inful/sorrydb-sync/internal/metrics"
	"git.home.luguber.info/inful/sorrydb-sync/internal/update"
)

func testConfig(metricsAddr string) *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Daemon.Schedule = "0 3 * * *"
	cfg.Daemon.MetricsAddr = metricsAddr
	return cfg
}

func fakeRun(calls *atomic.Int32, err error) RunFunc {
	return func(_ context.Context, _ *config.Config) (*update.Report, error) {
		calls.Add(1)
		now := time.Now()
		rep := &update.Report{RunID: "run-1", Outcome: update.OutcomeNoChanges, StartedAt: now, FinishedAt: now}
		if err != nil {
			rep.Outcome = update.OutcomeFailed
			rep.Err = err
		}
		return rep, err
	}
}

func startDaemon(t *testing.T, cfg *config.Config, run RunFunc) *Daemon {
	t.Helper()
	d, err := New(cfg, "", run)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func TestDaemonRunOnStart(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig("")
	cfg.Daemon.RunOnStart = true

	d := startDaemon(t, cfg, fakeRun(&calls, nil))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		rep, _ := d.LastRun()
		return rep != nil
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(1), d.RunCount())
	require.Empty(t, d.HTTPAddr())
}

func TestDaemonWithoutRunOnStartWaitsForSchedule(t *testing.T) {
	var calls atomic.Int32
	d := startDaemon(t, testConfig(""), fakeRun(&calls, nil))

	next, err := d.NextRun()
	require.NoError(t, err)
	require.Equal(t, 3, next.Hour())
	require.Equal(t, 0, next.Minute())

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, calls.Load())
}

func TestDaemonStartTwice(t *testing.T) {
	var calls atomic.Int32
	d := startDaemon(t, testConfig(""), fakeRun(&calls, nil))
	require.Error(t, d.Start(context.Background()))
}

func TestDaemonRejectsInvalidSchedule(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig("")
	cfg.Daemon.Schedule = "every day"

	d, err := New(cfg, "", fakeRun(&calls, nil))
	require.NoError(t, err)
	require.Error(t, d.Start(context.Background()))
}

func TestDaemonHTTPEndpoints(t *testing.T) {
	var calls atomic.Int32
	rec := metrics.NewPrometheusRecorder(metrics.NewDaemonRegistry())
	rec.IncRunOutcome(string(update.OutcomeUpdated))

	cfg := testConfig("127.0.0.1:0")
	cfg.Daemon.RunOnStart = true
	d, err := New(cfg, "", fakeRun(&calls, errors.New("push rejected")), WithRegistry(rec.Registry()))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	require.Eventually(t, func() bool {
		_, err := d.LastRun()
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	base := "http://" + d.HTTPAddr()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, HealthDegraded, health.Status)
	require.Equal(t, "0 3 * * *", health.Schedule)
	require.Equal(t, int64(1), health.Runs)
	require.NotNil(t, health.LastRun)
	require.Equal(t, "failed", health.LastRun.Outcome)
	require.Contains(t, health.LastRun.Error, "push rejected")
	require.NotNil(t, health.NextRun)
	require.Len(t, health.Services, 2)

	mresp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sorrydb_sync_run_outcomes_total{outcome="updated"} 1`)
	require.Contains(t, string(body), "go_goroutines")

	post, err := http.Post(base+"/healthz", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestDaemonReloadConfigReschedules(t *testing.T) {
	var calls atomic.Int32
	d := startDaemon(t, testConfig(""), fakeRun(&calls, nil))

	newCfg := testConfig("")
	newCfg.Daemon.Schedule = "30 5 * * *"
	require.NoError(t, d.ReloadConfig(context.Background(), newCfg))
	require.Equal(t, "30 5 * * *", d.Config().Daemon.Schedule)

	next, err := d.NextRun()
	require.NoError(t, err)
	require.Equal(t, 5, next.Hour())
	require.Equal(t, 30, next.Minute())
}

func TestDaemonReloadKeepsConfigOnBadSchedule(t *testing.T) {
	var calls atomic.Int32
	d := startDaemon(t, testConfig(""), fakeRun(&calls, nil))

	newCfg := testConfig("")
	newCfg.Daemon.Schedule = "not a schedule"
	require.Error(t, d.ReloadConfig(context.Background(), newCfg))
	require.Equal(t, "0 3 * * *", d.Config().Daemon.Schedule)
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	d, err := New(testConfig(""), "", fakeRun(&calls, nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.running.Load() }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestNewRequiresRunFunc(t *testing.T) {
	_, err := New(testConfig(""), "", nil)
	require.Error(t, err)
}

func writeDaemonConfig(t *testing.T, path, logLevel string) {
	t.Helper()
	content := "repository:\n  path: /srv/sorry-db-data\n" +
		"container:\n  log_level: " + logLevel + "\n" +
		"daemon:\n  schedule: \"0 3 * * *\"\n"
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestDaemonReloadKeepsScheduleOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorrydb-sync.yaml")
	writeDaemonConfig(t, path, "DEBUG")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Daemon.MetricsAddr = ""
	scheduleFlag := func(c *config.Config) { c.Daemon.Schedule = "15 4 * * *" }
	scheduleFlag(cfg)

	var calls atomic.Int32
	d, err := New(cfg, path, fakeRun(&calls, nil),
		WithOverrides(scheduleFlag),
		WithReloadDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	writeDaemonConfig(t, path, "INFO")

	require.Eventually(t, func() bool {
		return d.Config().Container.LogLevel == "INFO"
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, "15 4 * * *", d.Config().Daemon.Schedule)

	next, err := d.NextRun()
	require.NoError(t, err)
	require.Equal(t, 4, next.Hour())
	require.Equal(t, 15, next.Minute())
}

func TestDaemonReloadConfigAppliesOverrides(t *testing.T) {
	var calls atomic.Int32
	d, err := New(testConfig(""), "", fakeRun(&calls, nil),
		WithOverrides(func(c *config.Config) { c.Daemon.Schedule = "15 4 * * *" }))
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	fromFile := testConfig("")
	fromFile.Daemon.Schedule = "45 1 * * *"
	require.NoError(t, d.ReloadConfig(context.Background(), fromFile))
	require.Equal(t, "15 4 * * *", d.Config().Daemon.Schedule)
}
