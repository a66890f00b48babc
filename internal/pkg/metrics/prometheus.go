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

const namespace = "assetwatch"

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Alert engine metrics
	alertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "generated_total",
			Help:      "Alerts first seen by an evaluation pass",
		},
		[]string{"type", "priority"},
	)

	evaluatorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "evaluator_failures_total",
			Help:      "Rule evaluators skipped because of a failed source or a panic",
		},
		[]string{"evaluator"},
	)

	snapshotSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "snapshot_failures_total",
			Help:      "Snapshot reads that failed",
		},
		[]string{"source"},
	)

	evaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of snapshot fetch plus rule evaluation",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "actions_total",
			Help:      "Operator actions applied to alerts",
		},
		[]string{"action"},
	)

	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "escalations_total",
			Help:      "Alert escalations by trigger (manual or sweep)",
		},
		[]string{"trigger"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of escalation sweeps",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	activeAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Unresolved alerts seen by the last evaluation",
		},
		[]string{"priority"},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Notification deliveries by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
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

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAlertGenerated counts an alert seen for the first time
func RecordAlertGenerated(alertType, priority string) {
	alertsGenerated.WithLabelValues(alertType, priority).Inc()
}

// RecordEvaluatorFailure counts a skipped or crashed evaluator
func RecordEvaluatorFailure(evaluator string) {
	evaluatorFailures.WithLabelValues(evaluator).Inc()
}

// RecordSnapshotFailure counts a failed snapshot read
func RecordSnapshotFailure(source string) {
	snapshotSourceFailures.WithLabelValues(source).Inc()
}

// RecordEvaluation records the duration of one evaluation pass
func RecordEvaluation(duration time.Duration) {
	evaluationDuration.Observe(duration.Seconds())
}

// RecordAction counts an operator action
func RecordAction(action string) {
	actionsTotal.WithLabelValues(action).Inc()
}

// RecordEscalation counts an escalation by trigger
func RecordEscalation(trigger string) {
	escalationsTotal.WithLabelValues(trigger).Inc()
}

// RecordSweep records the duration of an escalation sweep
func RecordSweep(duration time.Duration) {
	sweepDuration.Observe(duration.Seconds())
}

// SetActiveAlerts sets the gauge for unresolved alerts by priority
func SetActiveAlerts(priority string, count float64) {
	activeAlerts.WithLabelValues(priority).Set(count)
}

// RecordNotification counts a channel delivery outcome
func RecordNotification(channel, status string) {
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
