package budgets

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

// Repository defines persistence operations for budgets.
type Repository interface {
	GetByLead(ctx context.Context, leadID uuid.UUID) (*Budget, error)
	// Upsert writes the amounts for a lead's budget, creating the row on
	// first write. An approved budget drops back to draft when its numbers
	// change.
	Upsert(ctx context.Context, leadID uuid.UUID, saleCents, costCents int64, cur string) (*Budget, error)
	Approve(ctx context.Context, leadID, approverID uuid.UUID) (*Budget, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const budgetColumns = `id, lead_id, sale_cents, cost_cents, currency, status, approved_by, created_at, updated_at`

func (r *PGRepository) GetByLead(ctx context.Context, leadID uuid.UUID) (*Budget, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE lead_id = $1`, leadID)
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("budgets: get: %w", err)
	}
	return b, nil
}

func (r *PGRepository) Upsert(ctx context.Context, leadID uuid.UUID, saleCents, costCents int64, cur string) (*Budget, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO budgets (lead_id, sale_cents, cost_cents, currency)
VALUES ($1, $2, $3, $4)
ON CONFLICT (lead_id) DO UPDATE SET
	sale_cents = EXCLUDED.sale_cents,
	cost_cents = EXCLUDED.cost_cents,
	currency = EXCLUDED.currency,
	status = 'DRAFT',
	approved_by = NULL,
	updated_at = $5
RETURNING `+budgetColumns, leadID, saleCents, costCents, cur, time.Now().UTC())
	b, err := scanBudget(row)
	if err != nil {
		return nil, fmt.Errorf("budgets: upsert: %w", err)
	}
	return b, nil
}

func (r *PGRepository) Approve(ctx context.Context, leadID, approverID uuid.UUID) (*Budget, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE budgets SET status = 'APPROVED', approved_by = $2, updated_at = $3
WHERE lead_id = $1
RETURNING `+budgetColumns, leadID, approverID, time.Now().UTC())
	b, err := scanBudget(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("budgets: approve: %w", err)
	}
	return b, nil
}

func scanBudget(row pgx.Row) (*Budget, error) {
	var b Budget
	if err := row.Scan(&b.ID, &b.LeadID, &b.SaleCents, &b.CostCents, &b.Currency,
		&b.Status, &b.ApprovedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ Repository = (*PGRepository)(nil)
