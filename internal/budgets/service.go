package budgets

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/leads"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// leadGate answers whether the caller may see a lead at all. Budget access
// piggybacks on lead visibility, then applies its own field masking.
type leadGate interface {
	Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*leads.Lead, error)
}

// Service reads and mutates per-lead budgets with permission-based field
// masking applied on the way out.
type Service struct {
	repo   Repository
	gate   leadGate
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, gate leadGate, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, logger: logger}
}

// UpdateInput carries the writable budget fields.
type UpdateInput struct {
	SaleCents int64
	CostCents int64
	Currency  string
}

// View returns the lead's budget masked to the caller's permissions.
func (s *Service) View(ctx context.Context, p authz.Principal, leadID uuid.UUID) (*View, error) {
	if _, err := s.gate.Get(ctx, p, leadID); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return render(p, b), nil
}

// Update writes the budget amounts, resetting approval state.
func (s *Service) Update(ctx context.Context, p authz.Principal, leadID uuid.UUID, input UpdateInput) (*View, error) {
	if !p.Can(authz.PermFinanceManage) && !p.Can(authz.PermBudgetViewCost) {
		return nil, httpx.ErrForbidden
	}
	if _, err := s.gate.Get(ctx, p, leadID); err != nil {
		return nil, err
	}
	if input.SaleCents < 0 || input.CostCents < 0 {
		return nil, httpx.ErrValidation
	}
	cur := input.Currency
	if cur == "" {
		cur = "USD"
	}
	b, err := s.repo.Upsert(ctx, leadID, input.SaleCents, input.CostCents, cur)
	if err != nil {
		return nil, err
	}
	return render(p, b), nil
}

// Approve transitions the budget to approved, recording the approver.
func (s *Service) Approve(ctx context.Context, p authz.Principal, leadID uuid.UUID) (*View, error) {
	if !p.Can(authz.PermBudgetApprove) {
		return nil, httpx.ErrForbidden
	}
	if _, err := s.gate.Get(ctx, p, leadID); err != nil {
		return nil, err
	}
	b, err := s.repo.Approve(ctx, leadID, p.UserID)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("budget approved",
			slog.String("lead_id", leadID.String()),
			slog.String("approver_id", p.UserID.String()))
	}
	return render(p, b), nil
}

// render masks cost and profit for callers without the matching permission.
func render(p authz.Principal, b *Budget) *View {
	v := &View{
		ID:          b.ID,
		LeadID:      b.LeadID,
		SaleCents:   b.SaleCents,
		SaleDisplay: FormatMoney(b.SaleCents, b.Currency),
		Currency:    b.Currency,
		Status:      b.Status,
		ApprovedBy:  b.ApprovedBy,
		UpdatedAt:   b.UpdatedAt,
	}
	if p.Can(authz.PermBudgetViewCost) {
		cost := b.CostCents
		display := FormatMoney(cost, b.Currency)
		v.CostCents = &cost
		v.CostDisplay = &display
	}
	if p.Can(authz.PermBudgetViewProfit) {
		profit := b.ProfitCents()
		display := FormatMoney(profit, b.Currency)
		v.ProfitCents = &profit
		v.ProfitDisplay = &display
	}
	return v
}
