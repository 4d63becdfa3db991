package vcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process/processtest"
)

func TestCLIRepository_Argv(t *testing.T) {
	fake := processtest.New()
	repo := NewCLIRepository("/srv/data", fake)
	ctx := context.Background()

	require.NoError(t, repo.Stage(ctx))
	_, err := repo.HasStagedChanges(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, "Updating SorryDB at 2024-03-05T10:00:00"))
	require.NoError(t, repo.Tag(ctx, "2024-03-05", "Database update on 2024-03-05T10:00:00"))
	require.NoError(t, repo.Push(ctx))
	require.NoError(t, repo.PushTags(ctx))

	calls := fake.Calls()
	require.Len(t, calls, 6)
	want := [][]string{
		{"git", "add", "."},
		{"git", "diff", "--staged", "--quiet"},
		{"git", "commit", "-m", "Updating SorryDB at 2024-03-05T10:00:00"},
		{"git", "tag", "-a", "2024-03-05", "-m", "Database update on 2024-03-05T10:00:00"},
		{"git", "push"},
		{"git", "push", "--tags"},
	}
	for i, c := range calls {
		require.Equal(t, want[i], c.Argv())
		require.Equal(t, "/srv/data", c.Dir)
	}
}

func TestCLIRepository_HasStagedChanges(t *testing.T) {
	ctx := context.Background()

	clean := NewCLIRepository("/repo", processtest.New())
	changed, err := clean.HasStagedChanges(ctx)
	require.NoError(t, err)
	require.False(t, changed)

	for _, code := range []int{1, 2, 128} {
		fake := processtest.New().Fail(code, "diff", "--staged")
		changed, err := NewCLIRepository("/repo", fake).HasStagedChanges(ctx)
		require.NoError(t, err)
		require.True(t, changed, "exit %d", code)
	}

	missing := processtest.New().Missing("git")
	_, err = NewCLIRepository("/repo", missing).HasStagedChanges(ctx)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestCLIRepository_CheckedFailure(t *testing.T) {
	fake := processtest.New().On(processtest.Response{ExitCode: 1, Stderr: "rejected"}, "push", "--tags")
	err := NewCLIRepository("/repo", fake).PushTags(context.Background())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryProcess))

	c, _ := ferrors.AsClassified(err)
	stderr, _ := c.Context().GetString(ferrors.KeyStderr)
	require.Equal(t, "rejected", stderr)
}
