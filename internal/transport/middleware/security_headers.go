package middleware

import (
	"fmt"
	"net/http"

	"github.com/frahmantamala/access-management/internal"
)

const defaultPermissionsPolicy = "geolocation=(), microphone=(), camera=(), payment=(), usb=()"

// SecurityHeaders sets the browser hardening headers on every response.
// Strict-Transport-Security is only sent over TLS.
func SecurityHeaders(cfg internal.HeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if cfg.HSTSSeconds > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains; preload", cfg.HSTSSeconds)
	}

	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", defaultPermissionsPolicy)
			if cfg.CSPPolicy != "" {
				h.Set("Content-Security-Policy", cfg.CSPPolicy)
			}
			if hsts != "" && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
