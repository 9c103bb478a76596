package rbac

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/session"
)

var permLookupGroup singleflight.Group

// lookupPermissions resolves the role's permission set, coalescing
// concurrent lookups for the same role into a single query.
func lookupPermissions(ctx context.Context, svc *Service, roleID uuid.UUID) ([]string, error) {
	resultChan := permLookupGroup.DoChan(roleID.String(), func() (interface{}, error) {
		return svc.EffectivePermissions(ctx, roleID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

// Middleware wires authorization helpers for HTTP handlers. It performs
// the generic permission check for read-only endpoints; mutation paths
// re-evaluate policy inside their transaction.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePermission ensures the current principal's role carries the
// given permission. The denial names the missing permission.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := session.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			granted, err := lookupPermissions(r.Context(), m.Service, principal.RoleID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("load effective permissions", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			actor := Subject{AccountID: principal.AccountID, RoleName: principal.RoleName, Permissions: granted}
			if err := RequirePermission(actor, perm); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin ensures the current principal's role carries the
// super_admin permission.
func (m Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return m.RequirePermission(PermSuperAdmin)(next)
}
