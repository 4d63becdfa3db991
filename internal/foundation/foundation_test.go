package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Run("Ok result", func(t *testing.T) {
		result := Ok[string, error]("updated")

		require.True(t, result.IsOk())
		require.False(t, result.IsErr())
		require.Equal(t, "updated", result.Unwrap())
	})

	t.Run("Err result", func(t *testing.T) {
		testErr := errors.New("push failed")
		result := Err[string, error](testErr)

		require.True(t, result.IsErr())
		require.ErrorIs(t, result.UnwrapErr(), testErr)
		require.Equal(t, "fallback", result.UnwrapOr("fallback"))
		require.Panics(t, func() { result.Unwrap() })
	})

	t.Run("ErrWith keeps partial value", func(t *testing.T) {
		testErr := errors.New("push --tags failed")
		result := ErrWith[int, error](3, testErr)

		value, err := result.ToTuple()
		require.Equal(t, 3, value)
		require.ErrorIs(t, err, testErr)
	})
}

type backend string

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string]backend{"cli": "cli", "go-git": "go-git", "gogit": "go-git"}, backend("cli"))

	require.Equal(t, backend("go-git"), n.Normalize(" GoGit "))
	require.Equal(t, backend("cli"), n.Normalize("svn"))

	v, err := n.NormalizeWithError("")
	require.NoError(t, err)
	require.Equal(t, backend("cli"), v)

	_, err = n.NormalizeWithError("svn")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cli, go-git, gogit")
}
