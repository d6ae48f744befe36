package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Service orchestrates grant and membership mutations on top of the stores,
// applying the validation policy: role identifiers are validated strictly,
// unknown permission codes are dropped silently. The asymmetry is inherited
// behavior kept for compatibility; dropped codes are logged so the leniency
// stays observable.
type Service struct {
	grants  GrantStore
	members MembershipStore
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(grants GrantStore, members MembershipStore, logger *slog.Logger) *Service {
	return &Service{grants: grants, members: members, logger: logger}
}

// ListPermissions returns the stored permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.grants.ListPermissions(ctx)
}

// Matrix returns every role's current grant set.
func (s *Service) Matrix(ctx context.Context) (map[Role][]string, error) {
	return s.grants.Matrix(ctx)
}

// GrantsForRole returns the grant set for one role.
func (s *Service) GrantsForRole(ctx context.Context, role Role) ([]string, error) {
	return s.grants.GrantsForRole(ctx, role)
}

// ReplaceRoleGrants swaps a role's grant set. The role must be part of the
// closed enumeration; unknown permission codes are filtered, not rejected.
func (s *Service) ReplaceRoleGrants(ctx context.Context, rawRole string, codes []string) ([]string, error) {
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	deduped := dedupe(codes)
	applied, err := s.grants.ReplaceGrants(ctx, role, deduped)
	if err != nil {
		return nil, err
	}
	if dropped := len(deduped) - len(applied); dropped > 0 && s.logger != nil {
		s.logger.Warn("dropped unknown permission codes",
			slog.String("role", string(role)),
			slog.Int("dropped", dropped))
	}
	return applied, nil
}

// SetUserRoles swaps a user's memberships. Every identifier must be part of
// the closed enumeration or the whole batch is rejected with ErrInvalidRole
// and the prior membership set is left untouched.
func (s *Service) SetUserRoles(ctx context.Context, userID uuid.UUID, rawRoles []string) error {
	roles, err := ParseRoles(rawRoles)
	if err != nil {
		return err
	}
	return s.members.SetRoles(ctx, userID, dedupeRoles(roles))
}

// RolesForUser returns the user's current memberships.
func (s *Service) RolesForUser(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	return s.members.RolesForUser(ctx, userID)
}

// AddUserRole grants a single membership, idempotently.
func (s *Service) AddUserRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.members.AddRole(ctx, userID, role)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeRoles(roles []Role) []Role {
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
