package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the auth core and gateway.
type Metrics struct {
	// Gateway HTTP traffic
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session lifecycle
	LoginsTotal        *prometheus.CounterVec
	TokenRefreshTotal  *prometheus.CounterVec
	ForcedLogoutsTotal prometheus.Counter
	ProfileFetchTotal  *prometheus.CounterVec

	// Guard and tenant resolution
	GuardDecisionsTotal    *prometheus.CounterVec
	TenantValidationsTotal *prometheus.CounterVec

	// Outbound calls to the backend
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics. A nil registry
// creates a private one, which keeps tests isolated.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_http_requests_total",
				Help: "Total number of gateway HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantgate_http_request_duration_seconds",
				Help:    "Gateway HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"outcome"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_token_refresh_total",
				Help: "Total number of access token refresh attempts",
			},
			[]string{"outcome"},
		),
		ForcedLogoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantgate_forced_logouts_total",
				Help: "Total number of forced logouts after failed refresh cycles",
			},
		),
		ProfileFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_profile_fetch_total",
				Help: "Total number of profile fetches",
			},
			[]string{"outcome"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_guard_decisions_total",
				Help: "Total number of route guard decisions",
			},
			[]string{"decision"},
		),
		TenantValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_tenant_validations_total",
				Help: "Total number of tenant slug validations",
			},
			[]string{"result"},
		),
		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantgate_backend_requests_total",
				Help: "Total number of outbound backend requests",
			},
			[]string{"method", "status"},
		),
		BackendRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantgate_backend_request_duration_seconds",
				Help:    "Outbound backend request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.TokenRefreshTotal,
		m.ForcedLogoutsTotal,
		m.ProfileFetchTotal,
		m.GuardDecisionsTotal,
		m.TenantValidationsTotal,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBackendRequest records one outbound backend call.
func (m *Metrics) ObserveBackendRequest(method string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Middleware instruments gateway HTTP handlers.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
