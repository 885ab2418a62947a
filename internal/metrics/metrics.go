// Package metrics provides Prometheus metrics for the storage client.
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
	// Transport metrics
	backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebrowser_backend_requests_total",
			Help: "Total number of requests sent to the storage backend",
		},
		[]string{"method", "kind"},
	)

	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storagebrowser_backend_request_duration_seconds",
			Help:    "Storage backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Upload metrics
	uploadsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storagebrowser_uploads_started_total",
			Help: "Total number of resumable uploads started",
		},
	)

	uploadsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebrowser_uploads_finished_total",
			Help: "Total number of resumable uploads by terminal state",
		},
		[]string{"state"},
	)

	uploadRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storagebrowser_upload_retries_total",
			Help: "Total number of chunk retries",
		},
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storagebrowser_upload_bytes_total",
			Help: "Total bytes acknowledged by the backend",
		},
	)

	uploadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagebrowser_uploads_active",
			Help: "Number of uploads in the registry",
		},
	)

	// Move and copy metrics
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebrowser_operations_total",
			Help: "Total number of move and copy operations",
		},
		[]string{"mode", "outcome"},
	)

	// Control plane metrics
	controlPlaneRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storagebrowser_controlplane_requests_total",
			Help: "Total number of control plane requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBackendRequest records a request to the storage backend. kind is the
// transport error kind, "none" on success.
func RecordBackendRequest(method, kind string, duration time.Duration) {
	backendRequestsTotal.WithLabelValues(method, kind).Inc()
	backendRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordUploadStarted() {
	uploadsStarted.Inc()
}

// RecordUploadFinished records the terminal state of an upload.
func RecordUploadFinished(state string) {
	uploadsFinished.WithLabelValues(state).Inc()
}

func RecordUploadRetry() {
	uploadRetries.Inc()
}

// RecordUploadBytes adds acknowledged bytes.
func RecordUploadBytes(n int64) {
	if n > 0 {
		uploadBytes.Add(float64(n))
	}
}

// SetUploadsActive sets the number of registered uploads.
func SetUploadsActive(n int) {
	uploadsActive.Set(float64(n))
}

// RecordOperation records a move or copy outcome.
func RecordOperation(mode, outcome string) {
	operationsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordControlPlaneRequest records a request served by the local control plane.
func RecordControlPlaneRequest(method, route string, status int) {
	controlPlaneRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
