package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "Total number of webhook events received (count)",
		},
		[]string{"receiver", "status"},
	)

	EventProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_event_processing_duration_ms",
			Help:    "Processing duration for webhook events in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"receiver", "status"},
	)

	EventsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_deleted_total",
			Help: "Total number of webhook events logically deleted (count)",
		},
		[]string{"receiver"},
	)

	ExecutorJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_jobs_total",
			Help: "Total number of jobs handled by the executor (count)",
		},
		[]string{"task", "state"},
	)

	ExecutorJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "executor_job_duration_ms",
			Help:    "Duration of executor jobs in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"task"},
	)

	ExecutorQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "executor_queue_size",
			Help: "Current size of the executor job queue (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"task"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)
)

func RegisterWebhookMetrics() {
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(EventsDeletedTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterExecutorMetrics() {
	prometheus.MustRegister(ExecutorJobsTotal)
	prometheus.MustRegister(ExecutorJobDuration)
	prometheus.MustRegister(ExecutorQueueSize)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}
