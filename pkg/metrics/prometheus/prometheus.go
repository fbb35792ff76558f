// Package prometheus implements the metrics interfaces on a dedicated
// Prometheus registry, kept separate from the default global registry so
// tests and embedders never collide on metric names.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/filedepot/pkg/metrics"
)

// durationBuckets cover the request latencies this service sees: sub-ms
// cache hits through multi-second large-object transfers.
var durationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

// New builds a Registry of Prometheus-backed implementations plus the
// underlying prometheus.Registry to expose through the metrics server.
func New() (*metrics.Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return &metrics.Registry{
		HTTP:  newHTTPMetrics(reg),
		Store: newStoreMetrics(reg),
		Blob:  newBlobMetrics(reg),
		Auth:  newAuthMetrics(reg),
	}, reg
}

type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	responseBytes    *prometheus.CounterVec
}

func newHTTPMetrics(reg *prometheus.Registry) *httpMetrics {
	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_http_requests_total",
				Help: "Total HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filedepot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"method", "route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filedepot_http_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
			[]string{"route"},
		),
		responseBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_http_response_bytes_total",
				Help: "Total bytes written in HTTP response bodies",
			},
			[]string{"method", "route"},
		),
	}
}

func (m *httpMetrics) RecordRequest(method, route string, status int, duration time.Duration, bytes int64) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	if bytes > 0 {
		m.responseBytes.WithLabelValues(method, route).Add(float64(bytes))
	}
}

func (m *httpMetrics) RecordRequestStart(route string) {
	m.requestsInFlight.WithLabelValues(route).Inc()
}

func (m *httpMetrics) RecordRequestEnd(route string) {
	m.requestsInFlight.WithLabelValues(route).Dec()
}

type storeMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
}

func newStoreMetrics(reg *prometheus.Registry) *storeMetrics {
	return &storeMetrics{
		queriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_store_queries_total",
				Help: "Total metadata store queries by operation and status",
			},
			[]string{"op", "status"},
		),
		queryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filedepot_store_query_duration_seconds",
				Help:    "Metadata store query duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"op"},
		),
	}
}

func (m *storeMetrics) RecordQuery(op string, duration time.Duration, err error) {
	m.queriesTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.queryDuration.WithLabelValues(op).Observe(duration.Seconds())
}

type blobMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

func newBlobMetrics(reg *prometheus.Registry) *blobMetrics {
	return &blobMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_blob_operations_total",
				Help: "Total blob store operations by operation and status",
			},
			[]string{"op", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filedepot_blob_operation_duration_seconds",
				Help:    "Blob store operation duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"op"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_blob_bytes_total",
				Help: "Total bytes moved through the blob store",
			},
			[]string{"op"},
		),
	}
}

func (m *blobMetrics) RecordOperation(op string, bytes int64, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
	if bytes > 0 {
		m.bytesTotal.WithLabelValues(op).Add(float64(bytes))
	}
}

type authMetrics struct {
	loginsTotal         *prometheus.CounterVec
	tokenRefreshesTotal prometheus.Counter
	shareAccessesTotal  prometheus.Counter
}

func newAuthMetrics(reg *prometheus.Registry) *authMetrics {
	return &authMetrics{
		loginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedepot_auth_logins_total",
				Help: "Total login attempts by result",
			},
			[]string{"result"},
		),
		tokenRefreshesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filedepot_auth_token_refreshes_total",
				Help: "Total successful refresh token rotations",
			},
		),
		shareAccessesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filedepot_auth_share_accesses_total",
				Help: "Total successful public share downloads",
			},
		),
	}
}

func (m *authMetrics) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

func (m *authMetrics) RecordTokenRefresh() {
	m.tokenRefreshesTotal.Inc()
}

func (m *authMetrics) RecordShareAccess() {
	m.shareAccessesTotal.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
