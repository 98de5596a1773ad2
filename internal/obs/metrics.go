package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_requests_total",
			Help: "Total number of API requests issued by the client.",
		},
		[]string{"method", "path", "status"},
	)

	clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Credential refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Session state transitions by target status.",
		},
		[]string{"to"},
	)
)

var initOnce sync.Once

// Init registers the client metric families in the default registry.
// Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			clientRequestsTotal,
			clientRequestDuration,
			tokenRefreshTotal,
			sessionTransitionsTotal,
		)
	})
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one completed API request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	clientRequestsTotal.WithLabelValues(method, path, code).Inc()
	clientRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// RecordRefresh records a credential refresh attempt ("ok" or "failed").
func RecordRefresh(outcome string) {
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition records a session state transition.
func RecordTransition(to string) {
	sessionTransitionsTotal.WithLabelValues(to).Inc()
}
