// Package auth turns repository authentication settings into go-git credentials.
package auth

import (
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/sorrydb-sync/internal/auth/providers"
	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
)

// Manager provides a high-level interface for authentication operations.
type Manager struct {
	registry *providers.AuthProviderRegistry
}

// NewManager creates a new authentication manager with the standard providers.
func NewManager() *Manager {
	return &Manager{
		registry: providers.NewAuthProviderRegistry(),
	}
}

// CreateAuth creates push credentials for the given configuration.
// A nil result with a nil error means no authentication.
func (m *Manager) CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	res, err := m.registry.CreateAuth(authCfg)
	if err != nil {
		return nil, err
	}
	return res.Auth, nil
}

// DefaultManager is a package-level instance for convenience.
var DefaultManager = NewManager()

// CreateAuth is a convenience function that uses the default manager.
func CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	return DefaultManager.CreateAuth(authCfg)
}
