package interceptors

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the authenticated caller as established by the auth
// interceptor. Handlers read it via FromContext.
type Identity struct {
	PrincipalID string
	SessionID   string
	Roles       []string
	Tier        string
}

// WithIdentity returns a context carrying the caller's identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller identity and true when the request was
// authenticated; otherwise the zero Identity and false.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
