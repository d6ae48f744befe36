package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-crm/atelier-crm/internal/authz"
)

// Service implements user account management on top of the repository and the
// authorization service. Role membership writes always go through authz so
// the strict role validation applies uniformly.
type Service struct {
	repo     Repository
	authz    *authz.Service
	resolver *authz.Resolver
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, authzSvc *authz.Service, resolver *authz.Resolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, authz: authzSvc, resolver: resolver, logger: logger}
}

// List returns accounts, optionally filtered to members of one role. The
// filter value is validated strictly.
func (s *Service) List(ctx context.Context, rawRole string) ([]User, error) {
	var filter *authz.Role
	if rawRole != "" {
		role, err := authz.ParseRole(rawRole)
		if err != nil {
			return nil, err
		}
		filter = &role
	}
	return s.repo.List(ctx, filter)
}

// Get fetches one account with its resolved permission set.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Create provisions an account and grants the requested memberships. Roles
// are validated before the account row is written so a bad batch leaves no
// partial state behind.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	roles, err := authz.ParseRoles(input.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, input.Username, string(hash), input.TeamID)
	if err != nil {
		return nil, err
	}

	for _, role := range roles {
		if err := s.authz.AddUserRole(ctx, user.ID, role); err != nil {
			return nil, fmt.Errorf("users: grant role %s: %w", role, err)
		}
	}
	user.Roles = roles
	if err := s.attachPermissions(ctx, user); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("user created",
			slog.String("user_id", user.ID.String()),
			slog.String("username", user.Username))
	}
	return user, nil
}

// Update applies partial account changes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*User, error) {
	var hash *string
	if input.Password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("users: hash password: %w", err)
		}
		s2 := string(h)
		hash = &s2
	}
	user, err := s.repo.Update(ctx, id, hash, input.TeamID, input.IsActive)
	if err != nil {
		return nil, err
	}
	roles, err := s.authz.RolesForUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	if err := s.attachPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ReplaceRoles swaps the account's memberships and returns the refreshed
// account. Unknown role identifiers reject the whole batch.
func (s *Service) ReplaceRoles(ctx context.Context, id uuid.UUID, rawRoles []string) (*User, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.authz.SetUserRoles(ctx, id, rawRoles); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) attachPermissions(ctx context.Context, user *User) error {
	perms, err := s.resolver.EffectivePermissions(ctx, user.Roles)
	if err != nil {
		return err
	}
	user.Permissions = perms.Sorted()
	return nil
}
