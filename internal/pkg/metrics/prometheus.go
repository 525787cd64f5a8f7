package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdrift",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snapdrift",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "snapdrift",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Snapshot metrics
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdrift",
			Subsystem: "scan",
			Name:      "total",
			Help:      "Total number of snapshots taken",
		},
		[]string{"context", "status"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snapdrift",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of a snapshot from fetch to reconciliation",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"context"},
	)

	scanResources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "snapdrift",
			Subsystem: "scan",
			Name:      "resources",
			Help:      "Resources captured by the latest snapshot",
		},
		[]string{"context"},
	)

	skippedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdrift",
			Subsystem: "scan",
			Name:      "skipped_documents_total",
			Help:      "Documents skipped because they could not be canonicalized",
		},
		[]string{"context"},
	)

	// Reconciliation metrics
	reconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "snapdrift",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of reconciling two scans",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	changesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdrift",
			Subsystem: "reconcile",
			Name:      "changes_total",
			Help:      "Change records produced by reconciliation",
		},
		[]string{"change_type"},
	)

	// Health metrics
	healthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "snapdrift",
			Subsystem: "health",
			Name:      "score",
			Help:      "Latest cluster health score",
		},
		[]string{"context"},
	)

	driftEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "snapdrift",
			Subsystem: "health",
			Name:      "drift_events",
			Help:      "Drift events in the latest health window",
		},
		[]string{"context"},
	)

	// Retention metrics
	scansDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "snapdrift",
			Subsystem: "retention",
			Name:      "deleted_scans_total",
			Help:      "Scans removed by retention cleanup",
		},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records a finished snapshot
func RecordScan(contextName, status string, resources int, duration time.Duration) {
	scansTotal.WithLabelValues(contextName, status).Inc()
	scanDuration.WithLabelValues(contextName).Observe(duration.Seconds())
	if status == "success" {
		scanResources.WithLabelValues(contextName).Set(float64(resources))
	}
}

// RecordSkippedDocuments counts documents dropped during ingestion
func RecordSkippedDocuments(contextName string, count int) {
	if count > 0 {
		skippedDocuments.WithLabelValues(contextName).Add(float64(count))
	}
}

// RecordReconcile records a reconciliation and its change counts by type
func RecordReconcile(duration time.Duration, counts map[string]int) {
	reconcileDuration.Observe(duration.Seconds())
	for changeType, n := range counts {
		changesTotal.WithLabelValues(changeType).Add(float64(n))
	}
}

// SetHealth sets the health gauges for a context
func SetHealth(contextName string, score, drift int) {
	healthScore.WithLabelValues(contextName).Set(float64(score))
	driftEvents.WithLabelValues(contextName).Set(float64(drift))
}

// RecordRetention counts scans removed by cleanup
func RecordRetention(deleted int64) {
	scansDeleted.Add(float64(deleted))
}
