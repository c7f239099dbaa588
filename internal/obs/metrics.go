package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Access decisions taken by the authentication and authorization gates.",
		},
		[]string{"gate", "outcome", "kind"},
	)

	auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events dropped because the sink queue was full.",
	})

	passwordUpgrades = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_password_upgrades_total",
		Help: "Legacy plaintext credentials rewritten as bcrypt hashes.",
	})

	initOnce sync.Once
)

// Init registers the service metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			authDecisions, auditDropped, passwordUpgrades)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument measures request count, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(sw.code)
			httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
			httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			httpInFlight.Dec()
		}()
		next.ServeHTTP(sw, r)
	})
}

// RecordAuthDecision counts a gate decision. kind is empty for accepted requests.
func RecordAuthDecision(gate, outcome, kind string) {
	authDecisions.WithLabelValues(gate, outcome, kind).Inc()
}

// RecordAuditDropped counts an audit event that could not be queued.
func RecordAuditDropped() {
	auditDropped.Inc()
}

// RecordPasswordUpgrade counts a legacy credential upgrade.
func RecordPasswordUpgrade() {
	passwordUpgrades.Inc()
}

// CanonicalPath collapses record identifiers so metric label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "users" && parts[2] == "role":
		return "/api/users/role/:id"
	case len(parts) == 3 && parts[0] == "api" && parts[1] == "users":
		switch parts[2] {
		case "all", "reset", "profile", "content":
			return raw
		}
		return "/api/users/:id"
	}
	return raw
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
