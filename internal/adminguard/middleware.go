package adminguard

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/pkg/metrics"
)

// Checker decides whether an address may reach the admin surface.
type Checker interface {
	IsIPAllowed(ctx context.Context, ip string) (bool, error)
}

// Guard gates every request whose path starts with Prefix.
type Guard struct {
	*transport.BaseHandler
	checker Checker
	prefix  string
	enabled bool
}

func NewGuard(baseHandler *transport.BaseHandler, checker Checker, prefix string, enabled bool) *Guard {
	return &Guard{
		BaseHandler: baseHandler,
		checker:     checker,
		prefix:      prefix,
		enabled:     enabled,
	}
}

// Middleware rejects admin requests from addresses outside the allow-list
// with 403. A failed lookup rejects with 500.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled || !strings.HasPrefix(r.URL.Path, g.prefix) {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		allowed, err := g.checker.IsIPAllowed(r.Context(), ip)
		if err != nil {
			g.Logger.Error("admin allow-list lookup failed", "ip_address", ip, "path", r.URL.Path, "error", err)
			g.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !allowed {
			metrics.AdminAccessDeniedTotal.Inc()
			g.Logger.Warn("admin access denied", "ip_address", ip, "path", r.URL.Path)
			g.WriteError(w, http.StatusForbidden, "access denied")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For entry, else the host part of
// RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
