package update

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// EnterRepository validates that path is an existing, readable directory and
// returns its absolute form. The process working directory is left alone.
func EnterRepository(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", enterErr(path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", enterErr(path, err)
	}
	if !info.IsDir() {
		return "", enterErr(path, nil).WithContext("reason", "not a directory")
	}

	f, err := os.Open(abs) // #nosec G304 -- repository path is operator configuration
	if err != nil {
		return "", enterErr(path, err)
	}
	_, err = f.Readdirnames(1)
	_ = f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", enterErr(path, err)
	}
	return abs, nil
}

func enterErr(path string, cause error) *ferrors.ClassifiedError {
	return ferrors.EnvironmentError("Failed to change to repository directory: "+path).
		WithCause(cause).
		WithContext(ferrors.KeyPath, path).
		Build()
}
