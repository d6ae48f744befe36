package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Repository defines persistence operations for leads.
type Repository interface {
	ListAll(ctx context.Context) ([]Lead, error)
	ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Lead, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Lead, error)
	Get(ctx context.Context, id uuid.UUID) (*Lead, error)
	Create(ctx context.Context, lead *Lead) error
	Update(ctx context.Context, lead *Lead) error
	Reassign(ctx context.Context, id, ownerID uuid.UUID, teamID *uuid.UUID) error
	// OwnerTeam reports the team of a prospective owner so reassignment can
	// keep the lead's team column in step with its owner.
	OwnerTeam(ctx context.Context, ownerID uuid.UUID) (*uuid.UUID, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const leadColumns = `id, name, phone, status, owner_id, team_id, created_at, updated_at`

func (r *PGRepository) ListAll(ctx context.Context) ([]Lead, error) {
	return r.list(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC`)
}

func (r *PGRepository) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]Lead, error) {
	return r.list(ctx, `SELECT `+leadColumns+` FROM leads WHERE team_id = $1 ORDER BY created_at DESC`, teamID)
}

func (r *PGRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Lead, error) {
	return r.list(ctx, `SELECT `+leadColumns+` FROM leads WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Status,
			&lead.OwnerID, &lead.TeamID, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
			return nil, fmt.Errorf("leads: list: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id).
		Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Status,
			&lead.OwnerID, &lead.TeamID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("leads: get: %w", err)
	}
	return &lead, nil
}

func (r *PGRepository) Create(ctx context.Context, lead *Lead) error {
	err := r.pool.QueryRow(ctx, `
INSERT INTO leads (name, phone, status, owner_id, team_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`,
		lead.Name, lead.Phone, lead.Status, lead.OwnerID, lead.TeamID).
		Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("leads: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, lead *Lead) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE leads SET name = $2, phone = $3, status = $4, updated_at = $5
WHERE id = $1`,
		lead.ID, lead.Name, lead.Phone, lead.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("leads: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Reassign(ctx context.Context, id, ownerID uuid.UUID, teamID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE leads SET owner_id = $2, team_id = $3, updated_at = $4
WHERE id = $1`, id, ownerID, teamID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("leads: reassign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *PGRepository) OwnerTeam(ctx context.Context, ownerID uuid.UUID) (*uuid.UUID, error) {
	var teamID *uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT team_id FROM users WHERE id = $1`, ownerID).Scan(&teamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("leads: owner team: %w", err)
	}
	return teamID, nil
}

var _ Repository = (*PGRepository)(nil)
