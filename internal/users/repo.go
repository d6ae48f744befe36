package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	List(ctx context.Context, role *authz.Role) ([]User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, username, passwordHash string, teamID *uuid.UUID) (*User, error)
	Update(ctx context.Context, id uuid.UUID, passwordHash *string, teamID *uuid.UUID, isActive *bool) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `u.id, u.username, u.team_id, u.is_active, u.created_at, u.updated_at,
COALESCE(array_agg(ur.role ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}')`

// List returns accounts ordered by username, optionally filtered to members
// of one role.
func (r *PGRepository) List(ctx context.Context, role *authz.Role) ([]User, error) {
	query := `
SELECT ` + userColumns + `
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id`
	args := []any{}
	if role != nil {
		query += `
WHERE EXISTS (SELECT 1 FROM user_roles f WHERE f.user_id = u.id AND f.role = $1)`
		args = append(args, string(*role))
	}
	query += `
GROUP BY u.id
ORDER BY u.username`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: list: %w", err)
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// Get fetches one account with its role memberships.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
WHERE u.id = $1
GROUP BY u.id`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

// Create inserts an account. A username collision maps to ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, username, passwordHash string, teamID *uuid.UUID) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (username, password_hash, team_id)
VALUES ($1, $2, $3)
RETURNING id, username, team_id, is_active, created_at, updated_at`, username, passwordHash, teamID).
		Scan(&user.ID, &user.Username, &user.TeamID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, httpx.ErrDuplicate
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	user.Roles = []authz.Role{}
	return &user, nil
}

// Update applies the non-nil fields and returns the refreshed account.
func (r *PGRepository) Update(ctx context.Context, id uuid.UUID, passwordHash *string, teamID *uuid.UUID, isActive *bool) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
UPDATE users SET
	password_hash = COALESCE($2, password_hash),
	team_id = COALESCE($3, team_id),
	is_active = COALESCE($4, is_active),
	updated_at = $5
WHERE id = $1
RETURNING id, username, team_id, is_active, created_at, updated_at`,
		id, passwordHash, teamID, isActive, time.Now().UTC()).
		Scan(&user.ID, &user.Username, &user.TeamID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("users: update: %w", err)
	}
	return &user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user  User
		roles []string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.TeamID, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &roles); err != nil {
		return nil, err
	}
	user.Roles = make([]authz.Role, 0, len(roles))
	for _, raw := range roles {
		role := authz.Role(raw)
		if !role.Valid() {
			continue
		}
		user.Roles = append(user.Roles, role)
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
