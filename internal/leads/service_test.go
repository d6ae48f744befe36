package leads

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

type stubRepo struct {
	leads map[uuid.UUID]*Lead
	teams map[uuid.UUID]*uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		leads: make(map[uuid.UUID]*Lead),
		teams: make(map[uuid.UUID]*uuid.UUID),
	}
}

func (s *stubRepo) add(owner uuid.UUID, team *uuid.UUID, name string) *Lead {
	lead := &Lead{ID: uuid.New(), Name: name, Status: StatusNew, OwnerID: owner, TeamID: team}
	s.leads[lead.ID] = lead
	return lead
}

func (s *stubRepo) ListAll(context.Context) ([]Lead, error) {
	var out []Lead
	for _, l := range s.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (s *stubRepo) ListByTeam(_ context.Context, teamID uuid.UUID) ([]Lead, error) {
	var out []Lead
	for _, l := range s.leads {
		if l.TeamID != nil && *l.TeamID == teamID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *stubRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]Lead, error) {
	var out []Lead
	for _, l := range s.leads {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(_ context.Context, id uuid.UUID) (*Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *stubRepo) Create(_ context.Context, lead *Lead) error {
	lead.ID = uuid.New()
	cp := *lead
	s.leads[lead.ID] = &cp
	return nil
}

func (s *stubRepo) Update(_ context.Context, lead *Lead) error {
	stored, ok := s.leads[lead.ID]
	if !ok {
		return httpx.ErrNotFound
	}
	*stored = *lead
	return nil
}

func (s *stubRepo) Reassign(_ context.Context, id, ownerID uuid.UUID, teamID *uuid.UUID) error {
	stored, ok := s.leads[id]
	if !ok {
		return httpx.ErrNotFound
	}
	stored.OwnerID = ownerID
	stored.TeamID = teamID
	return nil
}

func (s *stubRepo) OwnerTeam(_ context.Context, ownerID uuid.UUID) (*uuid.UUID, error) {
	team, ok := s.teams[ownerID]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return team, nil
}

func principalWith(userID uuid.UUID, teamID *uuid.UUID, codes ...string) authz.Principal {
	perms := make(authz.PermissionSet, len(codes))
	for _, c := range codes {
		perms[c] = struct{}{}
	}
	return authz.Principal{UserID: userID, TeamID: teamID, Permissions: perms}
}

func TestVisibilityForPrefersWidestScope(t *testing.T) {
	all := principalWith(uuid.New(), nil, authz.PermLeadViewAll, authz.PermLeadViewTeam, authz.PermLeadViewOwn)
	assert.Equal(t, VisibilityAll, VisibilityFor(all.Permissions))

	team := principalWith(uuid.New(), nil, authz.PermLeadViewTeam, authz.PermLeadViewOwn)
	assert.Equal(t, VisibilityTeam, VisibilityFor(team.Permissions))

	own := principalWith(uuid.New(), nil, authz.PermLeadViewOwn)
	assert.Equal(t, VisibilityOwn, VisibilityFor(own.Permissions))

	none := principalWith(uuid.New(), nil)
	assert.Equal(t, VisibilityOwn, VisibilityFor(none.Permissions))
}

func TestListScopingMatrix(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, slog.Default())

	teamA := uuid.New()
	teamB := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	repo.add(alice, &teamA, "alice lead")
	repo.add(bob, &teamA, "bob lead")
	repo.add(carol, &teamB, "carol lead")

	t.Run("view_all sees every row", func(t *testing.T) {
		out, err := svc.List(context.Background(), principalWith(alice, &teamA, authz.PermLeadViewAll))
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("view_team sees the caller's team only", func(t *testing.T) {
		out, err := svc.List(context.Background(), principalWith(alice, &teamA, authz.PermLeadViewTeam))
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("view_team without a team collapses to own rows", func(t *testing.T) {
		out, err := svc.List(context.Background(), principalWith(alice, nil, authz.PermLeadViewTeam))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, alice, out[0].OwnerID)
	})

	t.Run("view_own sees owned rows only", func(t *testing.T) {
		out, err := svc.List(context.Background(), principalWith(bob, &teamA, authz.PermLeadViewOwn))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, bob, out[0].OwnerID)
	})

	t.Run("no view permission still yields own rows", func(t *testing.T) {
		out, err := svc.List(context.Background(), principalWith(carol, &teamB))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, carol, out[0].OwnerID)
	})
}

func TestGetHidesOutOfScopeRows(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, slog.Default())

	teamA := uuid.New()
	teamB := uuid.New()
	owner := uuid.New()
	lead := repo.add(owner, &teamA, "hidden from team B")

	_, err := svc.Get(context.Background(), principalWith(uuid.New(), &teamB, authz.PermLeadViewTeam, authz.PermLeadEdit), lead.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	got, err := svc.Get(context.Background(), principalWith(uuid.New(), &teamA, authz.PermLeadViewTeam), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
}

func TestCreateRequiresPermissionAndStampsOwner(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, slog.Default())

	team := uuid.New()
	planner := uuid.New()

	_, err := svc.Create(context.Background(), principalWith(planner, &team), CreateInput{Name: "no perm"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	lead, err := svc.Create(context.Background(), principalWith(planner, &team, authz.PermLeadCreate), CreateInput{Name: "spring wedding"})
	require.NoError(t, err)
	assert.Equal(t, planner, lead.OwnerID)
	require.NotNil(t, lead.TeamID)
	assert.Equal(t, team, *lead.TeamID)
	assert.Equal(t, StatusNew, lead.Status)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, slog.Default())

	owner := uuid.New()
	lead := repo.add(owner, nil, "status check")

	bad := "ON_FIRE"
	_, err := svc.Update(context.Background(), principalWith(owner, nil, authz.PermLeadEdit), lead.ID, UpdateInput{Status: &bad})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestReassignFollowsNewOwnersTeam(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, slog.Default())

	teamA := uuid.New()
	teamB := uuid.New()
	manager := uuid.New()
	newOwner := uuid.New()
	repo.teams[newOwner] = &teamB

	lead := repo.add(manager, &teamA, "moving teams")

	got, err := svc.Reassign(context.Background(),
		principalWith(manager, &teamA, authz.PermLeadViewAll, authz.PermLeadAssign),
		lead.ID, newOwner)
	require.NoError(t, err)
	assert.Equal(t, newOwner, got.OwnerID)
	require.NotNil(t, got.TeamID)
	assert.Equal(t, teamB, *got.TeamID)

	_, err = svc.Reassign(context.Background(),
		principalWith(manager, &teamA, authz.PermLeadViewAll),
		lead.ID, newOwner)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}
