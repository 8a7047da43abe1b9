package identity

import (
	"context"
	"fmt"

	"github.com/jmartens/docpulse/internal/domain"
)

// StaticProvider resolves credentials against a fixed token table. Used in
// tests and local development without a token issuer.
type StaticProvider struct {
	tokens map[string]domain.Identity
}

func NewStaticProvider(tokens map[string]domain.Identity) *StaticProvider {
	return &StaticProvider{tokens: tokens}
}

func (p *StaticProvider) Authenticate(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := p.tokens[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	return &identity, nil
}
