// Package vcs stages, commits, tags and pushes the refreshed data repository.
//
// Two backends implement Repository: CLIRepository shells out to the git
// executable with fixed argument vectors, GoGitRepository does the same work
// in-process with go-git. The orchestrator only sees the interface.
package vcs

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
)

// Repository is the version control surface used by one update run.
type Repository interface {
	// Stage adds every working tree change to the index.
	Stage(ctx context.Context) error
	// HasStagedChanges reports whether the index differs from HEAD.
	HasStagedChanges(ctx context.Context) (bool, error)
	// Commit records the index with message.
	Commit(ctx context.Context, message string) error
	// Tag creates an annotated tag on HEAD.
	Tag(ctx context.Context, name, message string) error
	// Push publishes the current branch.
	Push(ctx context.Context) error
	// PushTags publishes all tags.
	PushTags(ctx context.Context) error
}

// Open returns the backend selected by cfg for the repository at dir.
// runner is only used by the cli backend, clock only by go-git.
func Open(cfg config.RepositoryConfig, dir string, runner process.Runner, clock clockwork.Clock) (Repository, error) {
	switch cfg.Backend {
	case config.BackendCLI, "":
		return NewCLIRepository(dir, runner), nil
	case config.BackendGoGit:
		return OpenGoGit(dir, cfg, clock)
	default:
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported repository backend: %s", cfg.Backend)).
			Build()
	}
}
