package authz

import (
	"context"

	"github.com/google/uuid"
)

// GrantSource answers what permission codes a single role currently holds.
type GrantSource interface {
	GrantsForRole(ctx context.Context, role Role) ([]string, error)
}

// GrantStore persists permission rows and role-permission grants.
type GrantStore interface {
	GrantSource
	ListPermissions(ctx context.Context) ([]Permission, error)
	// ReplaceGrants atomically swaps the grant set for a role. Codes without
	// a matching permission row are dropped, not errored; the applied codes
	// are returned so callers can report the difference.
	ReplaceGrants(ctx context.Context, role Role, codes []string) ([]string, error)
	HasAnyGrants(ctx context.Context, role Role) (bool, error)
	Matrix(ctx context.Context) (map[Role][]string, error)
}

// MembershipStore persists user-role memberships.
type MembershipStore interface {
	RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error)
	// SetRoles atomically swaps a user's membership rows. Role validation is
	// the service's job; the store assumes the set is already valid.
	SetRoles(ctx context.Context, userID uuid.UUID, roles []Role) error
	AddRole(ctx context.Context, userID uuid.UUID, role Role) error
}

// SyncOps is the transactional surface the synchronizer drives. All calls
// within one Sync run against the same transaction.
type SyncOps interface {
	UpsertPermission(ctx context.Context, entry CatalogEntry) (uuid.UUID, error)
	HasAnyGrants(ctx context.Context, role Role) (bool, error)
	InsertGrant(ctx context.Context, role Role, permissionID uuid.UUID) error
}

// SyncStore opens the transaction scope for a catalog sync.
type SyncStore interface {
	SyncTx(ctx context.Context, fn func(SyncOps) error) error
}
