package config

import "git.home.luguber.info/inful/sorrydb-sync/internal/foundation"

// Backend selects the version control implementation.
type Backend string

const (
	// BackendCLI shells out to the git executable.
	BackendCLI Backend = "cli"
	// BackendGoGit runs git operations in-process.
	BackendGoGit Backend = "go-git"
)

var backendNormalizer = foundation.NewNormalizer(map[string]Backend{
	"cli":    BackendCLI,
	"git":    BackendCLI,
	"go-git": BackendGoGit,
	"gogit":  BackendGoGit,
}, BackendCLI)

// ParseBackend normalizes a backend name; empty means BackendCLI.
func ParseBackend(raw string) (Backend, error) {
	return backendNormalizer.NormalizeWithError(raw)
}
