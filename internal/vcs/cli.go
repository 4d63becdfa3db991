package vcs

import (
	"context"

	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
)

// CLIRepository drives the git executable. Credentials, identity and the push
// target come from the user's own git configuration.
type CLIRepository struct {
	dir    string
	runner process.Runner
}

// NewCLIRepository creates a git CLI backend for the repository at dir.
func NewCLIRepository(dir string, runner process.Runner) *CLIRepository {
	return &CLIRepository{dir: dir, runner: runner}
}

func (r *CLIRepository) git(args ...string) process.Invocation {
	return process.Command("git", args...).In(r.dir)
}

func (r *CLIRepository) checked(ctx context.Context, args ...string) error {
	_, err := process.Checked(ctx, r.runner, r.git(args...))
	return err
}

// Stage runs `git add .`.
func (r *CLIRepository) Stage(ctx context.Context) error {
	return r.checked(ctx, "add", ".")
}

// HasStagedChanges runs `git diff --staged --quiet`. The exit status is the
// answer: zero means a clean index and any other status means changes.
func (r *CLIRepository) HasStagedChanges(ctx context.Context) (bool, error) {
	res, err := r.runner.Run(ctx, r.git("diff", "--staged", "--quiet"))
	if err != nil {
		return false, err
	}
	return res.ExitCode != 0, nil
}

// Commit runs `git commit -m <message>`.
func (r *CLIRepository) Commit(ctx context.Context, message string) error {
	return r.checked(ctx, "commit", "-m", message)
}

// Tag runs `git tag -a <name> -m <message>`.
func (r *CLIRepository) Tag(ctx context.Context, name, message string) error {
	return r.checked(ctx, "tag", "-a", name, "-m", message)
}

// Push runs `git push`.
func (r *CLIRepository) Push(ctx context.Context) error {
	return r.checked(ctx, "push")
}

// PushTags runs `git push --tags`.
func (r *CLIRepository) PushTags(ctx context.Context) error {
	return r.checked(ctx, "push", "--tags")
}
