package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-management/api"
	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/adminguard"
	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/internal/transport/middleware"
	"github.com/frahmantamala/access-management/internal/transport/swagger"
	"github.com/frahmantamala/access-management/internal/user"
	"github.com/frahmantamala/access-management/pkg/metrics"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const openAPIPath = "/openapi.yml"

// Handlers groups every HTTP handler the router mounts. Nil handlers leave
// their routes unmounted.
type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	Authz      *auth.Authorization
	User       *user.Handler
	Permission *permission.Handler
	Session    *session.Handler
	AllowList  *adminguard.Handler
	Guard      *adminguard.Guard
}

type Options struct {
	AllowedOrigins string
	Headers        internal.HeadersConfig
	MetricsEnabled bool
	MetricsPath    string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.SecurityHeaders(opts.Headers))
	if opts.MetricsEnabled {
		router.Use(middleware.Instrument)
	}
	router.Use(middleware.LoggingMiddleware(logger, opts.MetricsPath, "/api/v1/ping", "/api/v1/health"))
	if h.Guard != nil {
		router.Use(h.Guard.Middleware)
	}

	if opts.MetricsEnabled && opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, metrics.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get(openAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Spec)
	})
	router.Handle("/swagger/*", swagger.Handler(openAPIPath))

	// Mount API under /api/v1 to match OpenAPI servers
	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.With(h.Auth.AuthMiddleware).Post("/logout", h.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.Get("/users/me/export", h.User.ExportData)
				pr.Post("/users/me/delete", h.User.DeleteAccount)
			}

			if h.Session != nil {
				pr.Route("/security/sessions", func(sr chi.Router) {
					sr.Get("/", h.Session.ListSessions)
					sr.Post("/revoke-all", h.Session.RevokeAll)
					sr.Delete("/{key}", h.Session.RevokeSession)
				})
			}

			pr.Route("/admin", func(ar chi.Router) {
				if h.Authz != nil {
					ar.Use(h.Authz.RequireAdmin)
				}

				if h.Permission != nil {
					ar.Route("/permissions", func(per chi.Router) {
						per.Get("/roles", h.Permission.ListRoles)
						per.Post("/roles", h.Permission.CreateRole)
						per.Post("/roles/members", h.Permission.AddRoleMember)
						per.Delete("/roles/members", h.Permission.RemoveRoleMember)
						per.Get("/roles/{id}", h.Permission.GetRole)
						per.Put("/roles/{id}", h.Permission.UpdateRole)
						per.Delete("/roles/{id}", h.Permission.DeleteRole)

						per.Post("/assign", h.Permission.Assign)
						per.Post("/assign-bulk", h.Permission.AssignBulk)
						per.Post("/revoke", h.Permission.Revoke)
						per.Post("/revoke-bulk", h.Permission.RevokeBulk)
						per.Post("/check", h.Permission.Check)
						per.Get("/users/{userID}/objects/{type}/{objectID}", h.Permission.UserObjectPermissions)
					})
				}

				if h.AllowList != nil {
					ar.Route("/ip-allowlist", func(ipr chi.Router) {
						ipr.Get("/", h.AllowList.ListEntries)
						ipr.Post("/", h.AllowList.AddEntry)
						ipr.Delete("/{ip}", h.AllowList.RemoveEntry)
						ipr.Patch("/{ip}", h.AllowList.ToggleEntry)
					})
				}
			})
		})
	})
}
