package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated buyer details extracted from a bearer token.
type Identity struct {
	Subject  string
	BuyerID  int64
	SchoolID *int64
	Name     string
}

// HasSchool reports whether the buyer carries an institutional affiliation.
func (i *Identity) HasSchool() bool {
	return i != nil && i.SchoolID != nil && *i.SchoolID > 0
}

// DisplayName returns the buyer's name or the token subject as a fallback.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return i.Subject
}

type contextKey string

const identityContextKey contextKey = "github.com/schoolkit/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
