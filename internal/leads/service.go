package leads

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Service enforces ownership scoping and permission gates over the lead
// repository. Every read is scoped by the caller's visibility; out-of-scope
// rows read as missing rather than forbidden so listings and point reads
// agree on what exists.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateInput carries the fields accepted on lead creation.
type CreateInput struct {
	Name   string
	Phone  string
	Status string
}

// UpdateInput carries mutable lead fields. Nil pointers mean "leave as is".
type UpdateInput struct {
	Name   *string
	Phone  *string
	Status *string
}

// List returns the leads the caller may see.
func (s *Service) List(ctx context.Context, p authz.Principal) ([]Lead, error) {
	switch VisibilityFor(p.Permissions) {
	case VisibilityAll:
		return s.repo.ListAll(ctx)
	case VisibilityTeam:
		if p.TeamID == nil {
			// Team scope without a team collapses to owner-only.
			return s.repo.ListByOwner(ctx, p.UserID)
		}
		return s.repo.ListByTeam(ctx, *p.TeamID)
	default:
		return s.repo.ListByOwner(ctx, p.UserID)
	}
}

// Get returns one lead if it falls inside the caller's visibility.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*Lead, error) {
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(p, lead) {
		return nil, httpx.ErrNotFound
	}
	return lead, nil
}

// Create inserts a lead owned by the caller.
func (s *Service) Create(ctx context.Context, p authz.Principal, input CreateInput) (*Lead, error) {
	if !p.Can(authz.PermLeadCreate) {
		return nil, httpx.ErrForbidden
	}
	status := input.Status
	if status == "" {
		status = StatusNew
	}
	if !ValidStatus(status) {
		return nil, httpx.ErrValidation
	}
	lead := &Lead{
		Name:    input.Name,
		Phone:   input.Phone,
		Status:  status,
		OwnerID: p.UserID,
		TeamID:  p.TeamID,
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("lead created",
			slog.String("lead_id", lead.ID.String()),
			slog.String("owner_id", lead.OwnerID.String()))
	}
	return lead, nil
}

// Update edits a lead inside the caller's visibility.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, input UpdateInput) (*Lead, error) {
	if !p.Can(authz.PermLeadEdit) {
		return nil, httpx.ErrForbidden
	}
	lead, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		lead.Name = *input.Name
	}
	if input.Phone != nil {
		lead.Phone = *input.Phone
	}
	if input.Status != nil {
		if !ValidStatus(*input.Status) {
			return nil, httpx.ErrValidation
		}
		lead.Status = *input.Status
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Reassign moves a lead to a new owner, carrying the owner's team along.
func (s *Service) Reassign(ctx context.Context, p authz.Principal, id, newOwnerID uuid.UUID) (*Lead, error) {
	if !p.Can(authz.PermLeadAssign) {
		return nil, httpx.ErrForbidden
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	teamID, err := s.repo.OwnerTeam(ctx, newOwnerID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Reassign(ctx, id, newOwnerID, teamID); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("lead reassigned",
			slog.String("lead_id", id.String()),
			slog.String("new_owner_id", newOwnerID.String()))
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) visible(p authz.Principal, lead *Lead) bool {
	switch VisibilityFor(p.Permissions) {
	case VisibilityAll:
		return true
	case VisibilityTeam:
		if lead.OwnerID == p.UserID {
			return true
		}
		return p.TeamID != nil && lead.TeamID != nil && *p.TeamID == *lead.TeamID
	default:
		return lead.OwnerID == p.UserID
	}
}
