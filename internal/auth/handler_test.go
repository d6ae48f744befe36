package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelier-crm/atelier-crm/internal/auth"
	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/shared"
	_ "github.com/atelier-crm/atelier-crm/testing"
)

type stubRepo struct {
	user            *auth.User
	sessionsCreated int
	sessionsDeleted int
}

func (s *stubRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	if s.user == nil || s.user.Username != username {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(context.Context, string, uuid.UUID, time.Time, string, string) error {
	s.sessionsCreated++
	return nil
}

func (s *stubRepo) DeleteSession(context.Context, string) error {
	s.sessionsDeleted++
	return nil
}

func (s *stubRepo) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type stubMembers map[uuid.UUID][]authz.Role

func (s stubMembers) RolesForUser(_ context.Context, userID uuid.UUID) ([]authz.Role, error) {
	return s[userID], nil
}

func (s stubMembers) SetRoles(_ context.Context, userID uuid.UUID, roles []authz.Role) error {
	s[userID] = roles
	return nil
}

func (s stubMembers) AddRole(_ context.Context, userID uuid.UUID, role authz.Role) error {
	s[userID] = append(s[userID], role)
	return nil
}

type stubGrants map[authz.Role][]string

func (s stubGrants) GrantsForRole(_ context.Context, role authz.Role) ([]string, error) {
	return s[role], nil
}

type commitWriter struct {
	http.ResponseWriter
	sess    *shared.Session
	manager *shared.SessionManager
	ctx     context.Context
	req     *http.Request
	done    bool
}

func (w *commitWriter) WriteHeader(status int) {
	if !w.done {
		w.done = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.done {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

type fixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	repo     *stubRepo
}

func newFixture(t *testing.T, repo *stubRepo, members stubMembers, grants stubGrants) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.Default()

	mw := authz.Middleware{
		Members:  members,
		Resolver: authz.NewResolver(grants),
		Logger:   logger,
	}
	handler := auth.NewHandler(logger, auth.NewService(repo), mw, sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{
				ResponseWriter: w,
				sess:           sess,
				manager:        sessionManager,
				ctx:            ctx,
				req:            req.WithContext(ctx),
			}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	r.Route("/auth", handler.MountRoutes)

	return &fixture{router: r, sessions: sessionManager, repo: repo}
}

func activeUser(t *testing.T, username, password string, roles ...authz.Role) (*auth.User, stubMembers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &auth.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	return user, stubMembers{user.ID: roles}
}

func (f *fixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestLoginSuccess(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery", authz.RolePlanner)
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	res := f.login(t, "amelia", "correct horse battery")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var payload struct {
		UserID   uuid.UUID `json:"user_id"`
		Username string    `json:"username"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, user.ID, payload.UserID)
	assert.Equal(t, "amelia", payload.Username)
	assert.Equal(t, 1, f.repo.sessionsCreated, "login should persist an audit row")

	cookie := sessionCookie(t, res, f.sessions.CookieName())
	assert.NotEmpty(t, cookie.Value)
}

func TestLoginWrongPassword(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery")
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	res := f.login(t, "amelia", "wrong password here")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Zero(t, f.repo.sessionsCreated)
}

func TestLoginInactiveUser(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery")
	user.IsActive = false
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	res := f.login(t, "amelia", "correct horse battery")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeReturnsRolesAndPermissions(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery", authz.RoleManager)
	grants := stubGrants{
		authz.RoleManager: {authz.PermLeadViewTeam, authz.PermBudgetViewCost},
	}
	f := newFixture(t, &stubRepo{user: user}, members, grants)

	loginRes := f.login(t, "amelia", "correct horse battery")
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookie := sessionCookie(t, loginRes, f.sessions.CookieName())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var payload struct {
		UserID      uuid.UUID `json:"user_id"`
		Roles       []string  `json:"roles"`
		Permissions []string  `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, user.ID, payload.UserID)
	assert.Equal(t, []string{"MANAGER"}, payload.Roles)
	assert.ElementsMatch(t, []string{authz.PermLeadViewTeam, authz.PermBudgetViewCost}, payload.Permissions)
}

func TestMeWithoutSession(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery")
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery", authz.RolePlanner)
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	loginRes := f.login(t, "amelia", "correct horse battery")
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookie := sessionCookie(t, loginRes, f.sessions.CookieName())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, f.repo.sessionsDeleted)

	// The session is gone: a follow-up /me with the old cookie is rejected.
	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.AddCookie(cookie)
	meRes := httptest.NewRecorder()
	f.router.ServeHTTP(meRes, meReq)
	assert.Equal(t, http.StatusUnauthorized, meRes.Code)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	user, members := activeUser(t, "amelia", "correct horse battery")
	f := newFixture(t, &stubRepo{user: user}, members, stubGrants{})

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Token)
}
