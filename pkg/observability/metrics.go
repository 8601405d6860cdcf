package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Route authorization metrics
	AuthzDecisionsTotal  *prometheus.CounterVec // outcome: allowed|denied|not_found
	AuthzEvalDuration    prometheus.Histogram
	MenuRoutesReturned   prometheus.Histogram

	// Permission editor metrics
	PermissionTogglesTotal *prometheus.CounterVec // result: applied|unknown_permission
	RoleSavesTotal         *prometheus.CounterVec // result: saved|created|denied|invalid_tenant|inconsistent|error

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionLookupsTotal  *prometheus.CounterVec // result: hit|miss|error

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atrium_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_authz_decisions_total",
				Help: "Route authorization decisions by outcome",
			},
			[]string{"portal", "outcome"},
		),
		AuthzEvalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atrium_authz_eval_duration_seconds",
				Help:    "Time spent evaluating a route authorization decision",
				Buckets: []float64{.00001, .0001, .001, .01, .1},
			},
		),
		MenuRoutesReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "atrium_menu_routes_returned",
				Help:    "Number of routes returned per accessible-routes query",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
		PermissionTogglesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_permission_toggles_total",
				Help: "Permission toggle resolutions by result",
			},
			[]string{"result"},
		),
		RoleSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_role_saves_total",
				Help: "Role save attempts by result",
			},
			[]string{"result"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_sessions_active",
				Help: "Number of active portal sessions",
			},
		),
		SessionLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atrium_session_lookups_total",
				Help: "Session store lookups by result",
			},
			[]string{"result"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atrium_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzEvalDuration,
		m.MenuRoutesReturned,
		m.PermissionTogglesTotal,
		m.RoleSavesTotal,
		m.SessionsActive,
		m.SessionLookupsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an http.Handler serving the metrics of the given registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// responseRecorder captures the status code written by a handler
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request count and duration per route
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

// ObserveAuthzDecision records one route authorization decision
func (m *Metrics) ObserveAuthzDecision(portal, outcome string, duration time.Duration) {
	m.AuthzDecisionsTotal.WithLabelValues(portal, outcome).Inc()
	m.AuthzEvalDuration.Observe(duration.Seconds())
}
