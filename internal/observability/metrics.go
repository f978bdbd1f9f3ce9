package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	submissionsTotal       *prometheus.CounterVec
	submissionsRejected    *prometheus.CounterVec
	gradingLatencySeconds  prometheus.Histogram
	gradesRecordedTotal    prometheus.Counter
	cacheOperationsCounter *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aula_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_submissions_total",
			Help: "Total number of accepted submissions by resulting status.",
		}, []string{"status"})

		submissionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_submissions_rejected_total",
			Help: "Total number of rejected submit attempts by reason.",
		}, []string{"reason"})

		gradingLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aula_grading_latency_seconds",
			Help:    "Latency distribution for grading operations.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		gradesRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aula_grades_recorded_total",
			Help: "Total number of grades recorded, including overwrites.",
		})

		cacheOperationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aula_submission_cache_operations_total",
			Help: "Submission cache reads and invalidations by outcome.",
		}, []string{"operation", "outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			submissionsTotal,
			submissionsRejected,
			gradingLatencySeconds,
			gradesRecordedTotal,
			cacheOperationsCounter,
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

// Submissions exposes the counter for accepted submissions.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// SubmissionsRejected exposes the counter for rejected submit attempts.
func SubmissionsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsRejected
}

// GradingLatency exposes the histogram for grading operations.
func GradingLatency() prometheus.Histogram {
	RegisterMetrics()
	return gradingLatencySeconds
}

// GradesRecorded exposes the counter for recorded grades.
func GradesRecorded() prometheus.Counter {
	RegisterMetrics()
	return gradesRecordedTotal
}

// CacheOperations exposes the counter for submission cache activity.
func CacheOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheOperationsCounter
}
