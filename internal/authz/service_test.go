package authz

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memGrantStore keeps grants in memory and drops codes that have no
// permission row, like the SQL implementation does.
type memGrantStore struct {
	known  map[string]struct{}
	grants map[Role][]string
}

func newMemGrantStore(knownCodes ...string) *memGrantStore {
	known := make(map[string]struct{}, len(knownCodes))
	for _, c := range knownCodes {
		known[c] = struct{}{}
	}
	return &memGrantStore{known: known, grants: make(map[Role][]string)}
}

func (m *memGrantStore) GrantsForRole(_ context.Context, role Role) ([]string, error) {
	return m.grants[role], nil
}

func (m *memGrantStore) ListPermissions(context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.known))
	for code := range m.known {
		out = append(out, Permission{ID: uuid.New(), Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memGrantStore) ReplaceGrants(_ context.Context, role Role, codes []string) ([]string, error) {
	applied := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := m.known[code]; ok {
			applied = append(applied, code)
		}
	}
	m.grants[role] = applied
	return applied, nil
}

func (m *memGrantStore) HasAnyGrants(_ context.Context, role Role) (bool, error) {
	return len(m.grants[role]) > 0, nil
}

func (m *memGrantStore) Matrix(context.Context) (map[Role][]string, error) {
	out := make(map[Role][]string, len(Roles()))
	for _, role := range Roles() {
		out[role] = append([]string(nil), m.grants[role]...)
	}
	return out, nil
}

type memMembers struct {
	roles map[uuid.UUID][]Role
}

func newMemMembers() *memMembers {
	return &memMembers{roles: make(map[uuid.UUID][]Role)}
}

func (m *memMembers) RolesForUser(_ context.Context, userID uuid.UUID) ([]Role, error) {
	return m.roles[userID], nil
}

func (m *memMembers) SetRoles(_ context.Context, userID uuid.UUID, roles []Role) error {
	m.roles[userID] = roles
	return nil
}

func (m *memMembers) AddRole(_ context.Context, userID uuid.UUID, role Role) error {
	if IsInAny(m.roles[userID], role) {
		return nil
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func newTestService(grants GrantStore, members MembershipStore) *Service {
	return NewService(grants, members, slog.Default())
}

func TestReplaceRoleGrantsFiltersUnknownCodes(t *testing.T) {
	grants := newMemGrantStore(PermBudgetViewCost, PermBudgetViewProfit)
	svc := newTestService(grants, newMemMembers())

	applied, err := svc.ReplaceRoleGrants(context.Background(), "MANAGER",
		[]string{PermBudgetViewCost, "nonexistent:code"})
	require.NoError(t, err)
	assert.Equal(t, []string{PermBudgetViewCost}, applied)
	assert.Equal(t, []string{PermBudgetViewCost}, grants.grants[RoleManager])
}

func TestReplaceRoleGrantsRejectsUnknownRole(t *testing.T) {
	grants := newMemGrantStore(PermBudgetViewCost)
	svc := newTestService(grants, newMemMembers())

	_, err := svc.ReplaceRoleGrants(context.Background(), "SUPERUSER", []string{PermBudgetViewCost})
	require.ErrorIs(t, err, ErrInvalidRole)
	assert.Empty(t, grants.grants)
}

func TestReplaceRoleGrantsAllowsEmptySet(t *testing.T) {
	grants := newMemGrantStore(PermBudgetViewCost)
	grants.grants[RoleManager] = []string{PermBudgetViewCost}
	svc := newTestService(grants, newMemMembers())

	applied, err := svc.ReplaceRoleGrants(context.Background(), "MANAGER", nil)
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Empty(t, grants.grants[RoleManager])
}

func TestReplaceRoleGrantsDedupes(t *testing.T) {
	grants := newMemGrantStore(PermBudgetViewCost)
	svc := newTestService(grants, newMemMembers())

	applied, err := svc.ReplaceRoleGrants(context.Background(), "FINANCE",
		[]string{PermBudgetViewCost, PermBudgetViewCost})
	require.NoError(t, err)
	assert.Equal(t, []string{PermBudgetViewCost}, applied)
}

func TestSetUserRolesRejectsBatchKeepingPriorSet(t *testing.T) {
	members := newMemMembers()
	svc := newTestService(newMemGrantStore(), members)
	userID := uuid.New()
	require.NoError(t, svc.SetUserRoles(context.Background(), userID, []string{"PLANNER"}))

	err := svc.SetUserRoles(context.Background(), userID, []string{"ADMIN", "WIZARD"})
	require.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, []Role{RolePlanner}, members.roles[userID])
}

func TestSetUserRolesEmptyBatchClearsMemberships(t *testing.T) {
	members := newMemMembers()
	svc := newTestService(newMemGrantStore(), members)
	userID := uuid.New()
	require.NoError(t, svc.SetUserRoles(context.Background(), userID, []string{"PLANNER", "VENDOR"}))

	require.NoError(t, svc.SetUserRoles(context.Background(), userID, nil))
	assert.Empty(t, members.roles[userID])
}

func TestAddUserRoleValidatesAndIsIdempotent(t *testing.T) {
	members := newMemMembers()
	svc := newTestService(newMemGrantStore(), members)
	userID := uuid.New()

	require.ErrorIs(t, svc.AddUserRole(context.Background(), userID, Role("GHOST")), ErrInvalidRole)

	require.NoError(t, svc.AddUserRole(context.Background(), userID, RoleVendor))
	require.NoError(t, svc.AddUserRole(context.Background(), userID, RoleVendor))
	assert.Equal(t, []Role{RoleVendor}, members.roles[userID])
}
