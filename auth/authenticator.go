package auth

import (
	"chatwire/domain"
	"chatwire/errors"
	"context"
	"fmt"
)

// IdentityLookup is the slice of the profile store the authenticator needs.
type IdentityLookup interface {
	GetIdentity(id string) (domain.Identity, error)
}

// Authenticator turns a bearer token into a verified identity.
// It gates the websocket handshake and every /api route.
type Authenticator struct {
	lookup IdentityLookup
}

func NewAuthenticator(lookup IdentityLookup) *Authenticator {
	return &Authenticator{lookup: lookup}
}

// Authenticate validates the token signature and resolves the subject
// against the profile store. Any failure maps to ErrUnauthenticated so
// callers never learn why a credential was rejected.
func (a *Authenticator) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	claims, err := ValidateToken(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	identity, err := a.lookup.GetIdentity(claims.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: unknown subject", errors.ErrUnauthenticated)
	}

	return identity, nil
}
