package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Handler exposes the admin surface of the authorization engine: the stored
// catalog, the role-permission matrix, grant replacement and catalog sync.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sync     *Synchronizer
	mw       Middleware
	validate *validator.Validate

	matrixGroup singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sync *Synchronizer, mw Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sync:     sync,
		mw:       mw,
		validate: validator.New(),
	}
}

// MountPermissionRoutes registers /permissions routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(RoleAdmin))
		r.Get("/", h.listPermissions)
		r.Post("/sync", h.syncCatalog)
	})
}

// MountRoleRoutes registers /roles routes.
func (h *Handler) MountRoleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(RoleAdmin))
		r.Get("/", h.roleMatrix)
		r.Put("/{role}/permissions", h.replaceGrants)
	})
}

type permissionResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Module      string    `json:"module"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Code: p.Code, Module: p.Module, Name: p.Name, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) syncCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Sync(r.Context()); err != nil {
		h.logger.Error("catalog sync", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "permissions synced"})
}

// roleMatrix collapses concurrent reads: admin screens poll this endpoint
// and the underlying query walks every grant row.
func (h *Handler) roleMatrix(w http.ResponseWriter, r *http.Request) {
	result, err, _ := h.matrixGroup.Do("matrix", func() (any, error) {
		return h.service.Matrix(r.Context())
	})
	if err != nil {
		h.logger.Error("role matrix", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	matrix := result.(map[Role][]string)
	out := make(map[string][]string, len(matrix))
	for role, codes := range matrix {
		out[string(role)] = codes
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

type replaceGrantsRequest struct {
	// An empty list is valid: a role may hold zero permissions.
	Permissions []string `json:"permissions" validate:"dive,required"`
}

func (h *Handler) replaceGrants(w http.ResponseWriter, r *http.Request) {
	var req replaceGrantsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	applied, err := h.service.ReplaceRoleGrants(r.Context(), chi.URLParam(r, "role"), req.Permissions)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Role", err.Error())
			return
		}
		h.logger.Error("replace grants", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": applied})
}
