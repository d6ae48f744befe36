package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the permission
// catalog, role grants and user-role memberships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GrantsForRole returns the permission codes granted to a role. A role with
// no rows yields an empty set, never an error.
func (r *Repository) GrantsForRole(ctx context.Context, role Role) ([]string, error) {
	return grantsForRole(ctx, r.pool, role)
}

func grantsForRole(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, role Role) ([]string, error) {
	rows, err := q.Query(ctx, `
SELECT p.code
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role = $1
ORDER BY p.code`, string(role))
	if err != nil {
		return nil, fmt.Errorf("authz: grants for role: %w", err)
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ListPermissions returns all stored permissions ordered by module then code.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, code, module, name, COALESCE(description, '')
FROM permissions
ORDER BY module, code`)
	if err != nil {
		return nil, fmt.Errorf("authz: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Module, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ReplaceGrants swaps the grant set for a role inside one transaction.
// A concurrent reader sees either the fully-old or fully-new set. Codes
// without a matching permission row are dropped; the applied codes are
// returned.
func (r *Repository) ReplaceGrants(ctx context.Context, role Role, codes []string) ([]string, error) {
	var applied []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role = $1`, string(role)); err != nil {
			return fmt.Errorf("authz: clear grants: %w", err)
		}
		if len(codes) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO role_permissions (role, permission_id)
SELECT $1, id FROM permissions WHERE code = ANY($2)
ON CONFLICT (role, permission_id) DO NOTHING`, string(role), codes); err != nil {
			return fmt.Errorf("authz: insert grants: %w", err)
		}
		var err error
		applied, err = grantsForRole(ctx, tx, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// HasAnyGrants reports whether a role has at least one grant row.
func (r *Repository) HasAnyGrants(ctx context.Context, role Role) (bool, error) {
	return hasAnyGrants(ctx, r.pool, role)
}

func hasAnyGrants(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, role Role) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM role_permissions WHERE role = $1)`, string(role)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("authz: has any grants: %w", err)
	}
	return exists, nil
}

// Matrix returns every role's grant set in one pass. Roles without grants
// are present with an empty slice so the admin view lists the full
// enumeration.
func (r *Repository) Matrix(ctx context.Context) (map[Role][]string, error) {
	matrix := make(map[Role][]string, len(allRoles))
	for _, role := range allRoles {
		matrix[role] = []string{}
	}
	rows, err := r.pool.Query(ctx, `
SELECT rp.role, p.code
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
ORDER BY rp.role, p.code`)
	if err != nil {
		return nil, fmt.Errorf("authz: matrix: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleRaw, code string
		if err := rows.Scan(&roleRaw, &code); err != nil {
			return nil, err
		}
		role := Role(roleRaw)
		matrix[role] = append(matrix[role], code)
	}
	return matrix, rows.Err()
}

// RolesForUser returns the roles a user currently holds. Unknown role values
// in storage are skipped rather than failing the lookup.
func (r *Repository) RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: roles for user: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if role := Role(raw); role.Valid() {
			roles = append(roles, role)
		}
	}
	return roles, rows.Err()
}

// SetRoles swaps a user's membership rows inside one transaction.
func (r *Repository) SetRoles(ctx context.Context, userID uuid.UUID, roles []Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("authz: clear memberships: %w", err)
		}
		for _, role := range roles {
			if _, err := tx.Exec(ctx, `
INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
ON CONFLICT (user_id, role) DO NOTHING`, userID, string(role)); err != nil {
				return fmt.Errorf("authz: insert membership: %w", err)
			}
		}
		return nil
	})
}

// AddRole grants a single membership. Re-adding an existing membership is a
// no-op thanks to the composite primary key.
func (r *Repository) AddRole(ctx context.Context, userID uuid.UUID, role Role) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
ON CONFLICT (user_id, role) DO NOTHING`, userID, string(role))
	if err != nil {
		return fmt.Errorf("authz: add role: %w", err)
	}
	return nil
}

// SyncTx runs fn against transactional sync operations. Any error rolls the
// whole sync back to its pre-sync state.
func (r *Repository) SyncTx(ctx context.Context, fn func(SyncOps) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txSyncOps{tx: tx})
	})
}

type txSyncOps struct {
	tx pgx.Tx
}

// UpsertPermission inserts the catalog entry or overwrites its metadata in
// place; the catalog is authoritative for name, module and description.
func (o *txSyncOps) UpsertPermission(ctx context.Context, entry CatalogEntry) (uuid.UUID, error) {
	var id uuid.UUID
	err := o.tx.QueryRow(ctx, `
INSERT INTO permissions (code, module, name, description)
VALUES ($1, $2, $3, NULLIF($4, ''))
ON CONFLICT (code) DO UPDATE
SET module = EXCLUDED.module, name = EXCLUDED.name, description = EXCLUDED.description
RETURNING id`, entry.Code, entry.Module(), entry.Name, entry.Description).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("authz: upsert permission %s: %w", entry.Code, err)
	}
	return id, nil
}

func (o *txSyncOps) HasAnyGrants(ctx context.Context, role Role) (bool, error) {
	return hasAnyGrants(ctx, o.tx, role)
}

// InsertGrant seeds one default grant. The unique constraint makes a racing
// duplicate seed converge instead of duplicating or failing.
func (o *txSyncOps) InsertGrant(ctx context.Context, role Role, permissionID uuid.UUID) error {
	_, err := o.tx.Exec(ctx, `
INSERT INTO role_permissions (role, permission_id) VALUES ($1, $2)
ON CONFLICT (role, permission_id) DO NOTHING`, string(role), permissionID)
	if err != nil {
		return fmt.Errorf("authz: seed grant: %w", err)
	}
	return nil
}

var (
	_ GrantStore      = (*Repository)(nil)
	_ MembershipStore = (*Repository)(nil)
	_ SyncStore       = (*Repository)(nil)
)
