package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
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
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Queue metrics
	checkinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Total number of accepted check-ins",
		},
		[]string{"priority"},
	)

	checkinsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_rejected_total",
			Help: "Total number of rejected check-ins",
		},
		[]string{"reason"},
	)

	visitStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visit_status_changed_total",
			Help: "Total number of visit status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	emergencyEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emergency_escalations_total",
			Help: "Total number of waiting visits escalated to emergency",
		},
	)

	queueWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_waiting",
			Help: "Number of visits currently waiting",
		},
	)
)

// Middleware records HTTP request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the prometheus scrape endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCheckIn records an accepted check-in
func RecordCheckIn(priority string) {
	checkinsTotal.WithLabelValues(priority).Inc()
}

// RecordCheckInRejected records a rejected check-in
func RecordCheckInRejected(reason string) {
	checkinsRejected.WithLabelValues(reason).Inc()
}

// RecordStatusChange records a visit transition
func RecordStatusChange(from, to string) {
	visitStatusChanged.WithLabelValues(from, to).Inc()
}

// RecordEmergencyEscalation records a mark-emergency action
func RecordEmergencyEscalation() {
	emergencyEscalations.Inc()
}

// SetQueueWaiting publishes the current waiting count
func SetQueueWaiting(n int) {
	queueWaiting.Set(float64(n))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
