package authz

import (
	"context"
	"sort"
)

// PermissionSet is a resolved effective permission set.
type PermissionSet map[string]struct{}

// Has reports membership of a permission code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// HasAny reports whether any of the codes is present.
func (s PermissionSet) HasAny(codes ...string) bool {
	for _, code := range codes {
		if s.Has(code) {
			return true
		}
	}
	return false
}

// Sorted returns the codes in lexical order for stable API payloads.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for code := range s {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Resolver turns role memberships into permission decisions. Callers invoke
// it once per request and carry the result in request-scoped state; the
// storage round-trip is explicit in the signature.
type Resolver struct {
	grants GrantSource
}

// NewResolver constructs a Resolver over the given grant source.
func NewResolver(grants GrantSource) *Resolver {
	return &Resolver{grants: grants}
}

// EffectivePermissions unions the grants of every held role. An empty role
// set yields an empty permission set. Invalid role identifiers are skipped
// so stale or externally-injected role strings never fail the computation.
func (r *Resolver) EffectivePermissions(ctx context.Context, roles []Role) (PermissionSet, error) {
	set := make(PermissionSet)
	for _, role := range roles {
		if !role.Valid() {
			continue
		}
		codes, err := r.grants.GrantsForRole(ctx, role)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			set[code] = struct{}{}
		}
	}
	return set, nil
}

// HasPermission is a membership test against the effective permission set.
func (r *Resolver) HasPermission(ctx context.Context, roles []Role, code string) (bool, error) {
	set, err := r.EffectivePermissions(ctx, roles)
	if err != nil {
		return false, err
	}
	return set.Has(code), nil
}

// IsInAny is the coarse role gate: does the held set intersect the
// candidates. It never fails and needs no storage access.
func IsInAny(roles []Role, candidates ...Role) bool {
	for _, held := range roles {
		for _, c := range candidates {
			if held == c {
				return true
			}
		}
	}
	return false
}
