package providers

import (
	"errors"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
)

var errTokenRequired = errors.New("token authentication requires a token")

// TokenProvider handles personal access token authentication over HTTPS.
type TokenProvider struct{}

// NewTokenProvider creates a new token authentication provider.
func NewTokenProvider() *TokenProvider {
	return &TokenProvider{}
}

// Type returns the authentication type this provider handles.
func (p *TokenProvider) Type() config.AuthType {
	return config.AuthTypeToken
}

// CreateAuth creates token authentication. The username defaults to "token",
// which GitHub, GitLab and Forgejo all accept.
func (p *TokenProvider) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.Token == "" {
		return nil, errTokenRequired
	}
	username := authCfg.Username
	if username == "" {
		username = "token"
	}
	return &http.BasicAuth{
		Username: username,
		Password: authCfg.Token,
	}, nil
}

// ValidateConfig requires a token.
func (p *TokenProvider) ValidateConfig(authCfg *config.AuthConfig) error {
	if authCfg.Token == "" {
		return errTokenRequired
	}
	return nil
}

// Name returns a human-readable name for this provider.
func (p *TokenProvider) Name() string {
	return "TokenProvider"
}
