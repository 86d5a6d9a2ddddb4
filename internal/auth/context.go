package auth

import (
	"context"

	"github.com/finevents/apiserver/types"
)

type identityContextKey struct{}

// WithIdentity returns a copy of ctx carrying the resolved identity.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity resolved for the current request.
func IdentityFromContext(ctx context.Context) (types.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(types.Identity)
	return identity, ok
}
