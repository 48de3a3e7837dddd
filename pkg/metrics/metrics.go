// Package metrics holds the prometheus collectors shared by the HTTP layer
// and the security services.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	SessionsRevokedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_revoked_total",
			Help: "Sessions marked inactive, by reason.",
		},
		[]string{"reason"},
	)

	PermissionChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_changes_total",
			Help: "Permission grant mutations, by operation.",
		},
		[]string{"operation"},
	)

	AdminAccessDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admin_access_denied_total",
		Help: "Requests to the admin surface rejected by the IP allow-list.",
	})
)

var registerOnce sync.Once

// Init registers all collectors in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPInFlight,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			SessionsRevokedTotal,
			PermissionChangesTotal,
			AdminAccessDeniedTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
