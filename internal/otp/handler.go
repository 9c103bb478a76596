package otp

import (
	"net"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inpetum/identity/internal/platform/httpx"
)

// Handler wires the public recovery endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers recovery routes. Both endpoints are public.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/forgot-password-otp", h.requestChallenge)
	r.Post("/reset-password-otp", h.redeem)
}

type forgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) requestChallenge(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email is required")
		return
	}

	if err := h.service.RequestChallenge(r.Context(), req.Email, clientIP(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// Same shape for known and unknown emails.
	httpx.JSON(w, http.StatusOK, map[string]string{
		"message": "if the email exists, a reset code has been sent",
	})
}

type resetRequest struct {
	Email     string `json:"email" validate:"required,email"`
	OTP       string `json:"otp"`
	NewSecret string `json:"newSecret" validate:"required"`
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and newSecret are required")
		return
	}

	if err := h.service.Redeem(r.Context(), req.Email, req.OTP, req.NewSecret); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// clientIP keys the attempt counter on the address alone. RemoteAddr
// carries the ephemeral source port for direct connections, so every
// connection would otherwise get a fresh budget. RealIP has already
// rewritten RemoteAddr when a proxy header is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
