// Package metrics defines the Prometheus collectors of the server.
//
// Collectors are registered on a caller-supplied Registerer instead of the
// global default so tests can use a fresh prometheus.NewRegistry each time.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evergreeners"

type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
	syncs          *prometheus.CounterVec
	syncDuration   prometheus.Histogram
}

// New creates and registers all collectors on reg. It panics if they are
// already registered there, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		authRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_rejections_total",
				Help:      "Requests answered with 401 or 403.",
			},
			[]string{"reason"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "github_syncs_total",
				Help:      "GitHub syncs by outcome.",
			},
			[]string{"outcome"},
		),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "github_sync_duration_seconds",
			Help:      "Wall time of a single-user GitHub sync, including both API calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.authRejections, m.syncs, m.syncDuration)
	return m
}

// ObserveRequest records one finished HTTP request. route should be the
// router pattern ("/api/user/profile"), not the raw path, to bound label
// cardinality.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())

	switch status {
	case 401:
		m.authRejections.WithLabelValues("401_unauthorized").Inc()
	case 403:
		m.authRejections.WithLabelValues("403_forbidden").Inc()
	}
}

// ObserveSync implements service.SyncObserver.
func (m *Metrics) ObserveSync(outcome string, elapsed time.Duration) {
	m.syncs.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(elapsed.Seconds())
}
