package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapGrantSource map[Role][]string

func (m mapGrantSource) GrantsForRole(_ context.Context, role Role) ([]string, error) {
	return m[role], nil
}

type failingGrantSource struct{ err error }

func (f failingGrantSource) GrantsForRole(context.Context, Role) ([]string, error) {
	return nil, f.err
}

func TestEffectivePermissionsUnion(t *testing.T) {
	grants := mapGrantSource{
		RoleManager: {PermLeadViewTeam, PermBudgetViewCost},
		RoleFinance: {PermBudgetViewCost, PermFinanceManage},
	}
	resolver := NewResolver(grants)

	set, err := resolver.EffectivePermissions(context.Background(), []Role{RoleManager, RoleFinance})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{PermLeadViewTeam, PermBudgetViewCost, PermFinanceManage},
		set.Sorted())
}

func TestEffectivePermissionsEmptyRoleSet(t *testing.T) {
	resolver := NewResolver(mapGrantSource{})

	set, err := resolver.EffectivePermissions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.False(t, set.Has(PermUserManage))
}

func TestEffectivePermissionsSkipsInvalidRoles(t *testing.T) {
	grants := mapGrantSource{
		RolePlanner: {PermLeadViewOwn},
	}
	resolver := NewResolver(grants)

	set, err := resolver.EffectivePermissions(context.Background(), []Role{RolePlanner, Role("GHOST"), Role("")})
	require.NoError(t, err)
	assert.Equal(t, []string{PermLeadViewOwn}, set.Sorted())
}

func TestEffectivePermissionsPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	resolver := NewResolver(failingGrantSource{err: boom})

	_, err := resolver.EffectivePermissions(context.Background(), []Role{RoleAdmin})
	assert.ErrorIs(t, err, boom)
}

func TestHasPermission(t *testing.T) {
	grants := mapGrantSource{
		RoleFinance: {PermBudgetViewCost},
	}
	resolver := NewResolver(grants)

	ok, err := resolver.HasPermission(context.Background(), []Role{RoleFinance}, PermBudgetViewCost)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.HasPermission(context.Background(), []Role{RoleFinance}, PermUserManage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInAny(t *testing.T) {
	held := []Role{RolePlanner, RoleVendor}

	assert.True(t, IsInAny(held, RoleVendor))
	assert.True(t, IsInAny(held, RoleAdmin, RolePlanner))
	assert.False(t, IsInAny(held, RoleAdmin, RoleFinance))
	assert.False(t, IsInAny(nil, RoleAdmin))
	assert.False(t, IsInAny(held))
}
