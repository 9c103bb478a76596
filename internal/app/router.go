package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inpetum/identity/internal/auth"
	"github.com/inpetum/identity/internal/observability"
	"github.com/inpetum/identity/internal/otp"
	"github.com/inpetum/identity/internal/roles"
	"github.com/inpetum/identity/internal/session"
	"github.com/inpetum/identity/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *session.Manager
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	RolesHandler   *roles.Handler
	OTPHandler     *otp.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Public surface: login and password recovery.
	r.Group(func(r chi.Router) {
		params.AuthHandler.MountPublicRoutes(r)
		params.OTPHandler.MountRoutes(r)
	})

	// Everything else requires a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(params.SessionManager, params.Logger))
		params.AuthHandler.MountProtectedRoutes(r)
		params.UsersHandler.MountRoutes(r)
		params.RolesHandler.MountRoutes(r)
	})

	return r
}
