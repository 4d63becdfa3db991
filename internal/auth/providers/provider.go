package providers

import (
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

// AuthProvider builds push credentials for one authentication method.
type AuthProvider interface {
	// Type returns the authentication type this provider handles.
	Type() config.AuthType

	// CreateAuth creates a transport.AuthMethod from the given configuration.
	// Returns nil, nil for no authentication (AuthTypeNone).
	CreateAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error)

	// ValidateConfig enforces the provider's own requirements.
	ValidateConfig(authCfg *config.AuthConfig) error

	// Name returns a human-readable name for this provider.
	Name() string
}

// ProviderResult wraps the created auth method with the provider that made it.
type ProviderResult struct {
	Auth     transport.AuthMethod
	Provider string
	Type     config.AuthType
}

// AuthProviderRegistry maps authentication types to providers.
type AuthProviderRegistry struct {
	providers map[config.AuthType]AuthProvider
}

// NewAuthProviderRegistry creates a registry with the standard providers.
func NewAuthProviderRegistry() *AuthProviderRegistry {
	registry := &AuthProviderRegistry{
		providers: make(map[config.AuthType]AuthProvider),
	}

	registry.Register(NewNoneProvider())
	registry.Register(NewSSHProvider())
	registry.Register(NewTokenProvider())
	registry.Register(NewBasicProvider())

	return registry
}

// Register adds or replaces a provider.
func (r *AuthProviderRegistry) Register(provider AuthProvider) {
	r.providers[provider.Type()] = provider
}

// GetProvider returns the provider for the given auth type.
func (r *AuthProviderRegistry) GetProvider(authType config.AuthType) (AuthProvider, bool) {
	provider, exists := r.providers[authType]
	return provider, exists
}

// CreateAuth validates authCfg and creates credentials with the matching provider.
// A nil or empty config means no authentication.
func (r *AuthProviderRegistry) CreateAuth(authCfg *config.AuthConfig) (*ProviderResult, error) {
	if authCfg.IsZero() {
		authCfg = &config.AuthConfig{Type: config.AuthTypeNone}
	}

	provider, exists := r.GetProvider(authCfg.Type)
	if !exists {
		return nil, ferrors.AuthError("unsupported authentication type").
			WithContext("auth_type", string(authCfg.Type)).
			Build()
	}

	if err := provider.ValidateConfig(authCfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryAuth, "authentication configuration validation failed").
			UserAction().
			WithContext("auth_type", string(authCfg.Type)).
			Build()
	}

	auth, err := provider.CreateAuth(authCfg)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryAuth, "failed to create authentication").
			UserAction().
			WithContext("auth_type", string(authCfg.Type)).
			Build()
	}

	return &ProviderResult{
		Auth:     auth,
		Provider: provider.Name(),
		Type:     provider.Type(),
	}, nil
}
