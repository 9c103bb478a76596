package auth

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inpetum/identity/internal/observability"
	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/session"
)

// Mailer dispatches outbound notifications. Failures are logged and
// never fail the primary operation.
type Mailer interface {
	SendWelcomeEmail(ctx context.Context, to, firstName, role string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sessions  *session.Manager
	mailer    Mailer
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Manager, mailer Mailer, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		mailer:    mailer,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountPublicRoutes registers unauthenticated auth routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// MountProtectedRoutes registers routes behind the bearer middleware.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Post("/register", h.handleRegister)
}

type loginRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Secret string `json:"secret" validate:"required"`
}

type accountSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type loginResponse struct {
	SessionID string         `json:"sessionId"`
	Token     string         `json:"token"`
	ExpiresAt int64          `json:"expiresAt"`
	Account   accountSummary `json:"account"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and secret are required")
		return
	}

	result, err := h.service.Authenticate(r.Context(), req.Email, req.Secret)
	if err != nil {
		h.metrics.RecordLogin("failure")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordLogin("success")

	if err := h.service.TouchLogin(r.Context(), result.Account.ID); err != nil {
		h.logger.Warn("touch last login", slog.Any("error", err))
	}

	sess, err := h.sessions.Issue(r.Context(), result.Account.ID, result.Role.ID, result.Role.Name)
	if err != nil {
		// The account state is untouched; the caller can simply retry.
		h.logger.Error("issue session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "session could not be issued")
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		SessionID: sess.ID,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Unix(),
		Account: accountSummary{
			ID:        result.Account.ID.String(),
			Email:     result.Credential.Email,
			FirstName: result.Account.FirstName,
			LastName:  result.Account.LastName,
			Role:      result.Role.Name,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}
	if err := h.sessions.Invalidate(r.Context(), principal.AccountID); err != nil {
		h.logger.Error("invalidate session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type registerRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Secret    string `json:"secret" validate:"required,min=8"`
	Role      string `json:"role" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
		return
	}

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "all fields are required and the secret must be at least 8 characters")
		return
	}

	created, err := h.service.Register(r.Context(), principal, RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Secret:    req.Secret,
		Role:      req.Role,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	// Registration success is defined by persistence alone; mail delivery
	// failures are logged and swallowed.
	if h.mailer != nil {
		if err := h.mailer.SendWelcomeEmail(r.Context(), created.Email, created.FirstName, created.Role); err != nil {
			h.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusCreated, created)
}
