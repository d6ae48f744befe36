package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSyncStore is an in-memory SyncStore with snapshot rollback so aborted
// transactions leave no trace, mirroring the real transactional behavior.
type memSyncStore struct {
	permissions map[string]uuid.UUID
	grants      map[Role]map[uuid.UUID]struct{}

	failInsertGrant bool
	upserts         int
}

func newMemSyncStore() *memSyncStore {
	return &memSyncStore{
		permissions: make(map[string]uuid.UUID),
		grants:      make(map[Role]map[uuid.UUID]struct{}),
	}
}

func (m *memSyncStore) SyncTx(_ context.Context, fn func(SyncOps) error) error {
	permSnap := make(map[string]uuid.UUID, len(m.permissions))
	for k, v := range m.permissions {
		permSnap[k] = v
	}
	grantSnap := make(map[Role]map[uuid.UUID]struct{}, len(m.grants))
	for role, set := range m.grants {
		cp := make(map[uuid.UUID]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		grantSnap[role] = cp
	}

	if err := fn(m); err != nil {
		m.permissions = permSnap
		m.grants = grantSnap
		return err
	}
	return nil
}

func (m *memSyncStore) UpsertPermission(_ context.Context, entry CatalogEntry) (uuid.UUID, error) {
	m.upserts++
	if id, ok := m.permissions[entry.Code]; ok {
		return id, nil
	}
	id := uuid.New()
	m.permissions[entry.Code] = id
	return id, nil
}

func (m *memSyncStore) HasAnyGrants(_ context.Context, role Role) (bool, error) {
	return len(m.grants[role]) > 0, nil
}

func (m *memSyncStore) InsertGrant(_ context.Context, role Role, permissionID uuid.UUID) error {
	if m.failInsertGrant {
		return errors.New("disk full")
	}
	set, ok := m.grants[role]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		m.grants[role] = set
	}
	set[permissionID] = struct{}{}
	return nil
}

func (m *memSyncStore) codesForRole(role Role) []string {
	var out []string
	for code, id := range m.permissions {
		if _, ok := m.grants[role][id]; ok {
			out = append(out, code)
		}
	}
	return out
}

func TestSyncSeedsDefaultsOnEmptyStore(t *testing.T) {
	store := newMemSyncStore()
	sync := NewSynchronizer(store, slog.Default())

	require.NoError(t, sync.Sync(context.Background()))

	assert.Len(t, store.permissions, len(Catalog()))
	for _, role := range Roles() {
		assert.ElementsMatch(t, DefaultGrants(role), store.codesForRole(role),
			"role %s should hold its default profile", role)
	}
	assert.Contains(t, store.codesForRole(RoleAdmin), PermUserManage)
	assert.NotContains(t, store.codesForRole(RolePlanner), PermUserManage)
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newMemSyncStore()
	sync := NewSynchronizer(store, slog.Default())

	require.NoError(t, sync.Sync(context.Background()))
	firstAdmin := store.codesForRole(RoleAdmin)

	require.NoError(t, sync.Sync(context.Background()))
	assert.ElementsMatch(t, firstAdmin, store.codesForRole(RoleAdmin))
	assert.Len(t, store.permissions, len(Catalog()))
}

func TestSyncLeavesCustomizedGrantsAlone(t *testing.T) {
	store := newMemSyncStore()
	sync := NewSynchronizer(store, slog.Default())
	require.NoError(t, sync.Sync(context.Background()))

	// An administrator strips the manager profile down to a single grant.
	costID := store.permissions[PermBudgetViewCost]
	store.grants[RoleManager] = map[uuid.UUID]struct{}{costID: {}}

	require.NoError(t, sync.Sync(context.Background()))
	assert.Equal(t, []string{PermBudgetViewCost}, store.codesForRole(RoleManager),
		"sync must not re-seed a role that already has grants")
}

func TestSyncRollsBackOnFailure(t *testing.T) {
	store := newMemSyncStore()
	store.failInsertGrant = true
	sync := NewSynchronizer(store, slog.Default())

	err := sync.Sync(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.permissions, "aborted sync must leave no permission rows")
	assert.Empty(t, store.grants)
}
