package authz

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies a class of user with a default permission profile.
// The set of roles is closed; adding one means extending the enumeration
// and the default-grant table in catalog.go.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RolePlanner Role = "PLANNER"
	RoleVendor  Role = "VENDOR"
	RoleFinance Role = "FINANCE"
)

// ErrInvalidRole indicates a role identifier outside the closed enumeration
// was supplied to a mutating operation.
var ErrInvalidRole = errors.New("authz: invalid role")

var allRoles = []Role{RoleAdmin, RoleManager, RolePlanner, RoleVendor, RoleFinance}

// Roles returns the closed role enumeration in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RolePlanner, RoleVendor, RoleFinance:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// ParseRoles converts raw strings into roles, rejecting the whole batch on
// the first unknown identifier.
func ParseRoles(raw []string) ([]Role, error) {
	roles := make([]Role, 0, len(raw))
	for _, s := range raw {
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}

// Permission is a stored permission row. Code is the only stable identifier;
// the surrogate ID exists for storage joins and is never used as a merge key.
type Permission struct {
	ID          uuid.UUID
	Code        string
	Module      string
	Name        string
	Description string
}
