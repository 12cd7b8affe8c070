package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dreschagin/static-server/internal/routing"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the static server.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	ServedBytes        *prometheus.CounterVec
	NotFound           prometheus.Counter
	Forbidden          prometheus.Counter
	ReadErrors         *prometheus.CounterVec
	RateLimitDropped   prometheus.Counter
	AdminAuthFailures  prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "static_requests_total",
			Help: "Total number of HTTP requests on the content listener.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "static_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		ServedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "static_served_bytes_total",
			Help: "Total number of file bytes delivered, by content type.",
		}, []string{"content_type"}),
		NotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "static_not_found_total",
			Help: "Total number of requests for missing files.",
		}),
		Forbidden: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "static_forbidden_total",
			Help: "Total number of requests rejected for escaping the root directory.",
		}),
		ReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "static_read_errors_total",
			Help: "Total number of file read failures other than not-found, by error code.",
		}, []string{"code"}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "static_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
		AdminAuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "static_admin_auth_failures_total",
			Help: "Total number of rejected admin requests.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.ServedBytes,
		m.NotFound,
		m.Forbidden,
		m.ReadErrors,
		m.RateLimitDropped,
		m.AdminAuthFailures,
	)

	return m
}

// Middleware records request counts and latency. Route labels come from
// routing.Classify so arbitrary file paths never become label values.
func (m *Metrics) Middleware(diagnosticPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := string(routing.Classify(r.URL.Path, diagnosticPath))
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
