package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process/processtest"
)

func defaultContainerConfig() config.ContainerConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Container
}

func TestNewUpdateJob_Argv(t *testing.T) {
	cfg := defaultContainerConfig()
	logPath := LogPath(cfg, "2024-03-05T10:00:00_logs")
	require.Equal(t, "/data/logs/2024-03-05T10:00:00_logs", logPath)

	job := NewUpdateJob(cfg, "/srv/sorrydb-data", logPath)
	invs := job.Invocations()
	require.Len(t, invs, 2)

	require.Equal(t, []string{
		"docker", "run", "--rm",
		"--mount", "type=bind,source=/srv/sorrydb-data,target=/data",
		"sorrydb:latest",
		"poetry", "run", "update_db",
		"--database-file", "/data/sorry_database.json",
		"--stats-file", "/data/update_database_stats.json",
		"--log-file", "/data/logs/2024-03-05T10:00:00_logs",
		"--log-level", "DEBUG",
	}, invs[0].Argv())

	require.Equal(t, []string{
		"docker", "run", "--rm",
		"--mount", "type=bind,source=/srv/sorrydb-data,target=/data",
		"sorrydb:latest",
		"poetry", "run", "deduplicate_db",
		"--database-file", "/data/sorry_database.json",
		"--results-file", "/data/deduplicated_sorries.json",
		"--log-file", "/data/logs/2024-03-05T10:00:00_logs",
		"--log-level", "DEBUG",
	}, invs[1].Argv())

	for _, inv := range invs {
		require.Equal(t, "/srv/sorrydb-data", inv.Dir)
	}
}

func TestNewUpdateJob_KeepContainer(t *testing.T) {
	cfg := defaultContainerConfig()
	keep := false
	cfg.Remove = &keep
	cfg.Runtime = "podman"
	cfg.ToolPrefix = []string{}

	job := NewUpdateJob(cfg, "/repo", "/data/logs/x_logs")
	argv := job.Invocations()[0].Argv()
	require.Equal(t, "podman", argv[0])
	require.NotContains(t, argv, "--rm")
	require.Equal(t, "update_db", argv[5])
}

func TestRunner_RunsStepsInOrder(t *testing.T) {
	fake := processtest.New()
	var observed []string
	r := NewRunner(fake, func(step string, _ *process.Result, err error) {
		require.NoError(t, err)
		observed = append(observed, step)
	})

	job := NewUpdateJob(defaultContainerConfig(), "/repo", "/data/logs/x_logs")
	results, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, []string{StepUpdateDB, StepDeduplicateDB}, observed)
	require.True(t, fake.Called("update_db"))
	require.True(t, fake.Called("deduplicate_db"))
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	fake := processtest.New().Fail(2, "update_db")
	r := NewRunner(fake, nil)

	job := NewUpdateJob(defaultContainerConfig(), "/repo", "/data/logs/x_logs")
	results, err := r.Run(context.Background(), job)
	require.Error(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].ExitCode)
	require.False(t, fake.Called("deduplicate_db"))

	require.True(t, ferrors.HasCategory(err, ferrors.CategoryProcess))
	c, _ := ferrors.AsClassified(err)
	step, _ := c.Context().GetString(ferrors.KeyStep)
	require.Equal(t, StepUpdateDB, step)
}

func TestRunner_SecondStepFailure(t *testing.T) {
	fake := processtest.New().Fail(1, "deduplicate_db")

	job := NewUpdateJob(defaultContainerConfig(), "/repo", "/data/logs/x_logs")
	results, err := NewRunner(fake, nil).Run(context.Background(), job)
	require.Error(t, err)
	require.Len(t, results, 2)
}

func TestRunner_MissingRuntime(t *testing.T) {
	fake := processtest.New().Missing("docker")

	job := NewUpdateJob(defaultContainerConfig(), "/repo", "/data/logs/x_logs")
	_, err := NewRunner(fake, nil).Run(context.Background(), job)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	require.Len(t, fake.Calls(), 1)
}

func TestRunner_EmptyJob(t *testing.T) {
	_, err := NewRunner(processtest.New(), nil).Run(context.Background(), Job{Image: "x"})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryContainer))
}
