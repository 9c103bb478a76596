package roles

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
)

// Handler manages role endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission(rbac.PermRead)).Get("/roles", h.listRoles)
	r.With(h.rbac.RequireSuperAdmin).Post("/assign-role", h.assignRole)
	r.With(h.rbac.RequireSuperAdmin).Post("/remove-role", h.removeRole)
}

type roleView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]roleView, 0, len(list))
	for _, role := range list {
		views = append(views, roleView{Name: role.Name, Description: role.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

type assignRoleRequest struct {
	UserID   string `json:"userId" validate:"required,uuid"`
	RoleName string `json:"roleName" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId and roleName are required")
		return
	}
	targetID := uuid.MustParse(req.UserID)

	role, err := h.service.AssignRole(r.Context(), principal, targetID, req.RoleName)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "role assigned",
		"user":    map[string]string{"id": targetID.String(), "newRole": role.Name},
	})
}

type removeRoleRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}
	var req removeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId is required")
		return
	}
	targetID := uuid.MustParse(req.UserID)

	role, err := h.service.RemoveRole(r.Context(), principal, targetID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "role removed, default role assigned",
		"user":    map[string]string{"id": targetID.String(), "newRole": role.Name},
	})
}
