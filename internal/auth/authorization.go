package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
)

// ObjectPermissionChecker answers whether a subject holds a permission on
// one object.
type ObjectPermissionChecker interface {
	HasPermission(ctx context.Context, subject permission.Subject, perm string, target permission.Target) (bool, error)
}

type Authorization struct {
	*transport.BaseHandler
	checker ObjectPermissionChecker
}

func NewAuthorization(baseHandler *transport.BaseHandler, checker ObjectPermissionChecker) *Authorization {
	return &Authorization{
		BaseHandler: baseHandler,
		checker:     checker,
	}
}

// RequireAdmin admits only administrators.
func (a *Authorization) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, ok := internal.UserFromContext(r.Context())
		if !ok {
			a.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !current.IsAdmin {
			a.Logger.WarnContext(r.Context(), "access denied: admin required", "user_id", current.ID, "path", r.URL.Path)
			a.HandleServiceError(w, internal.ErrAccessDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireObjectPermission admits callers holding perm on the object of
// targetType whose id is in the URL parameter idParam. Administrators pass.
func (a *Authorization) RequireObjectPermission(perm, targetType, idParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current, ok := internal.UserFromContext(r.Context())
			if !ok {
				a.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if current.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			target := permission.Target{Type: targetType, ID: chi.URLParam(r, idParam)}
			allowed, err := a.checker.HasPermission(r.Context(), permission.UserSubject(current.ID), perm, target)
			if err != nil {
				a.Logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", current.ID, "permission", perm)
				a.HandleServiceError(w, err)
				return
			}
			if !allowed {
				a.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					slog.Int64("user_id", current.ID),
					slog.String("permission", perm),
					slog.String("target_type", target.Type),
					slog.String("target_id", target.ID))
				a.HandleServiceError(w, internal.ErrAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
