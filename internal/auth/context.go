// ABOUTME: Request-scoped identity of a verified bearer token
// ABOUTME: Provides WithIdentity/FromContext for propagating it via context

package auth

import (
	"context"
)

// Identity is the caller behind a verified access token.
type Identity struct {
	Subject string // the token's "sub" claim, a username
	UserID  int64
}

type identityKey struct{}

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
