package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/msomdec/color-hunt/internal/domain"
)

var (
	// HTTP requests served by the backend.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "colorhunt",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	// Photo uploads accepted or rejected by the backend.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "api",
			Name:      "uploads_total",
			Help:      "Total photo uploads",
		},
		[]string{"status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "api",
			Name:      "upload_bytes_total",
			Help:      "Total photo bytes uploaded",
		},
	)

	CollagesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "api",
			Name:      "collages_completed_total",
			Help:      "Completed collages by color",
		},
		[]string{"color"},
	)

	// Object storage operations, either backend.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Total file store operations",
		},
		[]string{"operation", "status"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "colorhunt",
			Subsystem: "storage",
			Name:      "duration_seconds",
			Help:      "File store operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	// Client-side best-effort sync calls to the backend.
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "colorhunt",
			Subsystem: "sync",
			Name:      "calls_total",
			Help:      "Remote sync calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordUpload records a photo upload.
func RecordUpload(status string, bytes int64) {
	UploadsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		UploadBytesTotal.Add(float64(bytes))
	}
}

// RecordCollage records a completed collage.
func RecordCollage(color string) {
	CollagesCompleted.WithLabelValues(color).Inc()
}

// RecordStorageOperation records a file store operation.
func RecordStorageOperation(operation, status string, durationSec float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageDuration.WithLabelValues(operation).Observe(durationSec)
}

// ObserveStorage records a file store call that began at start. A missing
// object is not an error.
func ObserveStorage(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	RecordStorageOperation(operation, status, time.Since(start).Seconds())
}

// RecordSync records a remote sync call.
func RecordSync(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SyncTotal.WithLabelValues(operation, status).Inc()
}
