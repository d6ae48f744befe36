package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Handler serves the user management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       authz.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		mw:       mw,
		validate: validator.New(),
	}
}

// MountRoutes registers user routes. Listing and creation use the coarse role
// gate; membership replacement needs the user:manage permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(authz.RoleAdmin, authz.RoleManager))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
	})
	r.With(h.mw.RequirePermission(authz.PermUserManage)).
		Put("/{id}/roles", h.replaceRoles)
	r.Patch("/{id}", h.update)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		if errors.Is(err, authz.ErrInvalidRole) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Role", err.Error())
			return
		}
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=64"`
	Password string   `json:"password" validate:"required,min=8"`
	TeamID   *string  `json:"team_id" validate:"omitempty,uuid4"`
	Roles    []string `json:"roles" validate:"dive,required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	input := CreateInput{Username: req.Username, Password: req.Password, Roles: req.Roles}
	if req.TeamID != nil {
		teamID, err := uuid.Parse(*req.TeamID)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		input.TeamID = &teamID
	}

	user, err := h.service.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, authz.ErrInvalidRole) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Role", err.Error())
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Password *string `json:"password" validate:"omitempty,min=8"`
	TeamID   *string `json:"team_id" validate:"omitempty,uuid4"`
	IsActive *bool   `json:"is_active"`
}

// update allows admins to edit any account and everyone else only their own.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if principal.UserID != id && !principal.IsInAny(authz.RoleAdmin) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	input := UpdateInput{Password: req.Password, IsActive: req.IsActive}
	if req.TeamID != nil {
		teamID, err := uuid.Parse(*req.TeamID)
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
		input.TeamID = &teamID
	}
	// Only admins may toggle activation or move accounts between teams.
	if !principal.IsInAny(authz.RoleAdmin) {
		input.IsActive = nil
		input.TeamID = nil
	}

	user, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type replaceRolesRequest struct {
	// An empty list is valid: it strips every membership.
	Roles []string `json:"roles" validate:"dive,required"`
}

func (h *Handler) replaceRoles(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req replaceRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.ReplaceRoles(r.Context(), id, req.Roles)
	if err != nil {
		if errors.Is(err, authz.ErrInvalidRole) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Role", err.Error())
			return
		}
		h.logger.Error("replace roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
