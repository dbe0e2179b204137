package models

import "context"

type identityContextKey struct{}

// Identity is the verified caller attached by the auth middleware.
// Handlers compare it against the user_id they were asked to act on.
type Identity struct {
	UserId string
	Email  string
	Role   string
}

// WithIdentity attaches a verified identity to a context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// GetIdentity retrieves the verified identity from context, or nil if absent.
func GetIdentity(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
