package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	enrollmentsTotal       *prometheus.CounterVec
	progressUpdatesTotal   *prometheus.CounterVec
	certificateIssuesTotal *prometheus.CounterVec
	certificateDeliveries  *prometheus.CounterVec
	uploadLatencySeconds   *prometheus.HistogramVec
	scheduledSweepsTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		enrollmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_enrollments_total",
			Help: "Enrollment attempts partitioned by outcome.",
		}, []string{"outcome"})

		progressUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_progress_updates_total",
			Help: "Progress updates partitioned by resulting status.",
		}, []string{"status"})

		certificateIssuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_certificate_issues_total",
			Help: "Per-student certificate issuance results.",
		}, []string{"outcome"})

		certificateDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_certificate_deliveries_total",
			Help: "Certificate delivery emails partitioned by result.",
		}, []string{"result"})

		uploadLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_certificate_upload_seconds",
			Help:    "Latency of certificate artifact uploads.",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"})

		scheduledSweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_certificate_sweeps_total",
			Help: "Scheduled certificate sweeps partitioned by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			enrollmentsTotal,
			progressUpdatesTotal,
			certificateIssuesTotal,
			certificateDeliveries,
			uploadLatencySeconds,
			scheduledSweepsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Enrollments exposes the enrollment outcome counter.
func Enrollments() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentsTotal
}

// ProgressUpdates exposes the progress update counter.
func ProgressUpdates() *prometheus.CounterVec {
	RegisterMetrics()
	return progressUpdatesTotal
}

// CertificateIssues exposes the per-item issuance counter.
func CertificateIssues() *prometheus.CounterVec {
	RegisterMetrics()
	return certificateIssuesTotal
}

// CertificateDeliveries exposes the delivery counter.
func CertificateDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return certificateDeliveries
}

// UploadLatency exposes the artifact upload histogram.
func UploadLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return uploadLatencySeconds
}

// ScheduledSweeps exposes the sweep counter.
func ScheduledSweeps() *prometheus.CounterVec {
	RegisterMetrics()
	return scheduledSweepsTotal
}
