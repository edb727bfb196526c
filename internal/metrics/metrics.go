// Package metrics exposes Prometheus collectors for the intake proxy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification delivery results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Backup results.
const (
	BackupInserted = "inserted"
	BackupPresent  = "already_present"
	BackupFailed   = "failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailproxy_submissions_total",
			Help: "Total subscriber submissions, labeled by terminal outcome.",
		},
		[]string{"outcome"},
	)

	forwardDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailproxy_forward_duration_seconds",
			Help:    "Latency of calls to the subscription backend, labeled by result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	backupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailproxy_backups_total",
			Help: "Backup store writes, labeled by result.",
		},
		[]string{"result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailproxy_notifications_total",
			Help: "Operational notifications, labeled by kind and delivery result.",
		},
		[]string{"kind", "result"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubmission counts a finished pipeline run.
func ObserveSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveForward records one backend call.
func ObserveForward(result string, duration time.Duration) {
	forwardDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveBackup counts one backup attempt.
func ObserveBackup(result string) {
	backupsTotal.WithLabelValues(result).Inc()
}

// ObserveNotification counts one notification attempt.
func ObserveNotification(kind, result string) {
	notificationsTotal.WithLabelValues(kind, result).Inc()
}
