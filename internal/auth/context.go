package auth

import (
	"context"

	"appsuite/internal/models"
)

type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// Owns reports whether p may act on a resource owned by ownerID.
func (p Principal) Owns(ownerID string) bool {
	return p.UserID == ownerID || p.IsAdmin()
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
