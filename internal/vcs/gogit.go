package vcs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/sorrydb-sync/internal/auth"
	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
)

const tagsRefSpec = ggitcfg.RefSpec("refs/tags/*:refs/tags/*")

// GoGitRepository implements Repository with go-git.
type GoGitRepository struct {
	dir    string
	repo   *git.Repository
	remote string
	author config.AuthorConfig
	auth   transport.AuthMethod
	clock  clockwork.Clock
}

// OpenGoGit opens the repository at dir and prepares push credentials.
// Commit and tag signatures are timestamped with clock; nil means the wall clock.
func OpenGoGit(dir string, cfg config.RepositoryConfig, clock clockwork.Clock) (*GoGitRepository, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryGit, "failed to open repository").
			Fatal().
			WithContext(ferrors.KeyPath, dir).
			Build()
	}

	authMethod, err := auth.CreateAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}

	remote := cfg.Remote
	if remote == "" {
		remote = config.DefaultRemote
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &GoGitRepository{
		dir:    dir,
		repo:   repo,
		remote: remote,
		author: resolveAuthor(repo, cfg.Author),
		auth:   authMethod,
		clock:  clock,
	}, nil
}

// resolveAuthor fills a missing name or email from user.name and user.email
// in the repository and global git config.
func resolveAuthor(repo *git.Repository, author config.AuthorConfig) config.AuthorConfig {
	if author.Name != "" && author.Email != "" {
		return author
	}
	gitCfg, err := repo.ConfigScoped(ggitcfg.GlobalScope)
	if err != nil {
		slog.Debug("Failed to read git identity", logfields.Error(err))
		return author
	}
	if author.Name == "" {
		author.Name = gitCfg.User.Name
	}
	if author.Email == "" {
		author.Email = gitCfg.User.Email
	}
	return author
}

func (r *GoGitRepository) gitErr(err error, op string) *ferrors.ClassifiedError {
	return ferrors.WrapError(err, ferrors.CategoryGit, op+" failed").
		Fatal().
		WithContext(ferrors.KeyPath, r.dir).
		WithContext(ferrors.KeyStep, op).
		Build()
}

// Stage adds all changes, deletions included, to the index.
func (r *GoGitRepository) Stage(_ context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return r.gitErr(err, "stage")
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return r.gitErr(err, "stage")
	}
	return nil
}

// HasStagedChanges inspects the staging column of the worktree status.
func (r *GoGitRepository) HasStagedChanges(_ context.Context) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, r.gitErr(err, "status")
	}
	status, err := wt.Status()
	if err != nil {
		return false, r.gitErr(err, "status")
	}
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true, nil
		}
	}
	return false, nil
}

// signature returns the resolved identity stamped with the run clock, or nil
// when no identity is configured anywhere and go-git reports the error.
func (r *GoGitRepository) signature() *object.Signature {
	if r.author.Name == "" || r.author.Email == "" {
		return nil
	}
	return &object.Signature{Name: r.author.Name, Email: r.author.Email, When: r.clock.Now()}
}

// Commit records the index on the current branch.
func (r *GoGitRepository) Commit(_ context.Context, message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return r.gitErr(err, "commit")
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		return r.gitErr(err, "commit")
	}
	slog.Debug("Created commit", slog.String("hash", hash.String()), logfields.Repository(r.dir))
	return nil
}

// Tag creates an annotated tag on HEAD. An existing tag with the same name is an error.
func (r *GoGitRepository) Tag(_ context.Context, name, message string) error {
	head, err := r.repo.Head()
	if err != nil {
		return r.gitErr(err, "tag")
	}
	if _, err := r.repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Message: message,
		Tagger:  r.signature(),
	}); err != nil {
		return r.gitErr(err, "tag").WithContext("tag", name)
	}
	return nil
}

// Push publishes the checked out branch to the configured remote.
func (r *GoGitRepository) Push(ctx context.Context) error {
	head, err := r.repo.Head()
	if err != nil {
		return r.gitErr(err, "push")
	}
	spec := ggitcfg.RefSpec(head.Name().String() + ":" + head.Name().String())
	return r.push(ctx, "push", spec)
}

// PushTags publishes every local tag.
func (r *GoGitRepository) PushTags(ctx context.Context) error {
	return r.push(ctx, "push_tags", tagsRefSpec)
}

func (r *GoGitRepository) push(ctx context.Context, op string, spec ggitcfg.RefSpec) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       r.auth,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return r.gitErr(err, op).WithContext("remote", r.remote)
}
