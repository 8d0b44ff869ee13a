package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seatreserve"

// Booking outcomes.
const (
	OutcomeCommitted   = "committed"
	OutcomeConflict    = "conflict"
	OutcomeRejected    = "rejected"
	OutcomeInvalid     = "invalid"
	OutcomeNotFound    = "not_found"
	OutcomeForbidden   = "forbidden"
	OutcomeRateLimited = "rate_limited"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Booking operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	bookingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_operation_duration_seconds",
			Help:      "Time spent in booking transactions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	blackoutsInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blackout_windows_inserted_total",
			Help:      "Blackout windows written by the scheduler.",
		},
	)

	schedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blackout_scheduler_runs_total",
			Help:      "Scheduler ticks by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingOps, bookingLatency, blackoutsInserted, schedulerRuns)
	})
}

// IncHTTP counts one request for an endpoint label and status code.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// ObserveBooking records the outcome and duration of one booking operation.
func ObserveBooking(operation, outcome string, took time.Duration) {
	bookingOps.WithLabelValues(operation, outcome).Inc()
	bookingLatency.WithLabelValues(operation).Observe(took.Seconds())
}

func AddBlackoutsInserted(n int) {
	if n > 0 {
		blackoutsInserted.Add(float64(n))
	}
}

func IncSchedulerRun(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	schedulerRuns.WithLabelValues(result).Inc()
}
