package shared

import "context"

type principalContextKey struct{}

// Principal is the authenticated admin attached to a request.
type Principal struct {
	UserID    int64
	Username  string
	SessionID string
}

// ContextWithPrincipal stores the principal in context. Its presence is what
// grants authorization to mutating operations.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// IsAuthorized reports whether the context carries an authorized principal.
func IsAuthorized(ctx context.Context) bool {
	return PrincipalFromContext(ctx) != nil
}

// Authorize returns ErrUnauthorized unless the context is authorized.
func Authorize(ctx context.Context) error {
	if !IsAuthorized(ctx) {
		return ErrUnauthorized
	}
	return nil
}

// ActorID returns the acting user id, zero for anonymous callers.
func ActorID(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return 0
}
