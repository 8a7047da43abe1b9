package realtime

import (
	"context"
	"log/slog"

	"github.com/jmartens/docpulse/internal/domain"
)

// Authenticator gates inbound connections on a bearer credential.
type Authenticator struct {
	provider    domain.IdentityProvider
	requireAuth bool
}

func NewAuthenticator(provider domain.IdentityProvider, requireAuth bool) *Authenticator {
	return &Authenticator{provider: provider, requireAuth: requireAuth}
}

// Authenticate resolves token to an identity. A nil identity with a nil error
// means the connection is allowed anonymously.
//
// When auth is not required the accept decision ignores the token, but a
// supplied one is still resolved best-effort so downstream code can use the
// identity. Provider failures never propagate: they map to
// domain.ErrInvalidCredential when auth is required and to an anonymous
// accept otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	if !a.requireAuth {
		if token == "" || a.provider == nil {
			return nil, nil
		}
		identity, err := a.provider.Authenticate(ctx, token)
		if err != nil {
			slog.Debug("Optional credential did not resolve, allowing anonymous", "error", err)
			return nil, nil
		}
		return identity, nil
	}

	if token == "" {
		return nil, domain.ErrMissingCredential
	}

	identity, err := a.provider.Authenticate(ctx, token)
	if err != nil {
		slog.Warn("Credential rejected by identity provider", "error", err)
		return nil, domain.ErrInvalidCredential
	}
	if identity == nil {
		slog.Warn("Identity provider resolved no user for credential")
		return nil, domain.ErrInvalidCredential
	}
	return identity, nil
}
