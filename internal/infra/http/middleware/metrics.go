package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_stage_transitions_total",
			Help: "Stage transition attempts by record type and outcome",
		},
		[]string{"record_type", "outcome"},
	)

	calendarSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_calendar_syncs_total",
			Help: "Calendar sync runs by result",
		},
		[]string{"result"},
	)

	calendarEventsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crm_calendar_events_synced_total",
			Help: "Calendar events upserted by sync runs",
		},
	)

	enrollments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sequence_enrollments_total",
			Help: "Sequence enrollment attempts by result",
		},
		[]string{"result"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern evita uma série por ID: /api/records/{id}/stage em vez do path cru.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// outcome: ok, gated, conflict ou error.
func RecordStageTransition(recordType, outcome string) {
	stageTransitions.WithLabelValues(recordType, outcome).Inc()
}

func RecordCalendarSync(result string, events int) {
	calendarSyncs.WithLabelValues(result).Inc()
	calendarEventsSynced.Add(float64(events))
}

func RecordEnrollments(enrolled, failed int) {
	enrollments.WithLabelValues("enrolled").Add(float64(enrolled))
	enrollments.WithLabelValues("error").Add(float64(failed))
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
