package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the API key a request was authenticated with.
type Principal struct {
	OwnerID   uuid.UUID
	KeyPrefix string
	Scopes    []string
}

func (p Principal) HasScope(scope string) bool {
	return slices.Contains(p.Scopes, scope)
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal set by Authenticate or Identify.
func PrincipalFrom(r *http.Request) (Principal, bool) {
	p, ok := r.Context().Value(principalKey{}).(Principal)
	return p, ok
}

// GetOwnerID returns the owner of the authenticated key, if any.
func GetOwnerID(r *http.Request) (uuid.UUID, bool) {
	p, ok := PrincipalFrom(r)
	return p.OwnerID, ok
}
