package authz

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated actor with its role memberships and the
// permission set resolved once for the current request.
type Principal struct {
	UserID      uuid.UUID
	TeamID      *uuid.UUID
	Roles       []Role
	Permissions PermissionSet
}

// IsInAny is the coarse gate against the principal's held roles.
func (p Principal) IsInAny(candidates ...Role) bool {
	return IsInAny(p.Roles, candidates...)
}

// Can is the fine gate against the resolved permission set.
func (p Principal) Can(code string) bool {
	return p.Permissions.Has(code)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal set by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
