package budgets

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/platform/httpx"
)

// Handler serves budget endpoints nested under a lead.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers budget routes. Mounted under the lead routes, so the
// path parameter name must match theirs.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/budget", h.view)
	r.Put("/{id}/budget", h.update)
	r.Post("/{id}/budget/approve", h.approve)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	principal, leadID, ok := h.scope(w, r)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), principal, leadID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

type updateBudgetRequest struct {
	SaleCents int64  `json:"sale_cents" validate:"min=0"`
	CostCents int64  `json:"cost_cents" validate:"min=0"`
	Currency  string `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, leadID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req updateBudgetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	view, err := h.service.Update(r.Context(), principal, leadID, UpdateInput{
		SaleCents: req.SaleCents,
		CostCents: req.CostCents,
		Currency:  req.Currency,
	})
	if err != nil {
		h.logger.Error("update budget", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	principal, leadID, ok := h.scope(w, r)
	if !ok {
		return
	}
	view, err := h.service.Approve(r.Context(), principal, leadID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (authz.Principal, uuid.UUID, bool) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return authz.Principal{}, uuid.Nil, false
	}
	leadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return authz.Principal{}, uuid.Nil, false
	}
	return principal, leadID, true
}
