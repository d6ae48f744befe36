package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
	"github.com/atelier-crm/atelier-crm/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. Authenticate
// resolves the caller's roles and effective permissions once per request and
// stashes them as the request principal; the gates only read that state.
type Middleware struct {
	Members  MembershipStore
	Resolver *Resolver
	Logger   *slog.Logger
}

// Authenticate requires a logged-in session and attaches the principal.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || strings.TrimSpace(sess.User()) == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		userID, err := uuid.Parse(sess.User())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("authz parse user id", slog.String("value", sess.User()))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		roles, err := m.Members.RolesForUser(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("authz load roles", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		perms, err := m.Resolver.EffectivePermissions(r.Context(), roles)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("authz resolve permissions", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		principal := Principal{UserID: userID, Roles: roles, Permissions: perms}
		if raw := sess.Get(shared.SessionKeyTeamID); raw != "" {
			if teamID, err := uuid.Parse(raw); err == nil {
				principal.TeamID = &teamID
			}
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRole passes when the principal holds at least one candidate role.
func (m Middleware) RequireRole(candidates ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !principal.IsInAny(candidates...) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission passes when the principal holds at least one of the
// permission codes.
func (m Middleware) RequirePermission(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !principal.Permissions.HasAny(codes...) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
