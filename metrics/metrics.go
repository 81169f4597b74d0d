package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream request metrics
	APIAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpbs_api_attempts_total",
			Help: "Total number of Bunny API call attempts by outcome",
		},
		[]string{"api", "method", "outcome"}, // outcome: "success", "http_error", "rate_limited", "transport_error"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wpbs_api_request_duration_seconds",
			Help:    "Duration of individual Bunny API attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api", "method"},
	)

	APIResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpbs_api_responses_total",
			Help: "Total number of Bunny API responses by status code",
		},
		[]string{"api", "status"},
	)

	// Retry coordinator metrics
	RetryWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpbs_retry_waits_total",
			Help: "Total number of backoff waits between attempts",
		},
		[]string{"reason"}, // "backoff", "rate_limited"
	)

	RetryWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpbs_retry_wait_seconds_total",
			Help: "Total seconds spent waiting between attempts",
		},
	)

	RateLimitMarkerWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpbs_rate_limit_marker_waits_total",
			Help: "Attempts delayed by a shared rate-limit marker set by another caller",
		},
	)

	RetryExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpbs_retry_exhausted_total",
			Help: "Calls that failed after all attempts",
		},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wpbs_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Collection metrics
	CollectionLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpbs_collection_lock_contention_total",
			Help: "Collection creations refused because the per-user lock was held",
		},
	)

	CollectionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpbs_collections_created_total",
			Help: "Collection create requests by result",
		},
		[]string{"result"}, // "created", "existing", "failed"
	)

	// Offload metrics
	VideosOffloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wpbs_videos_offloaded_total",
			Help: "Attachments processed by the offloader by result",
		},
		[]string{"result"}, // "uploaded", "skipped", "failed"
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wpbs_upload_bytes_total",
			Help: "Bytes sent in video upload bodies",
		},
	)
)

// RecordAttempt records the outcome and latency of one upstream attempt.
func RecordAttempt(api, method, outcome string, status int, duration time.Duration) {
	APIAttempts.WithLabelValues(api, method, outcome).Inc()
	APIRequestDuration.WithLabelValues(api, method).Observe(duration.Seconds())
	if status > 0 {
		APIResponses.WithLabelValues(api, strconv.Itoa(status)).Inc()
	}
}

// RecordWait records a sleep between attempts.
func RecordWait(reason string, d time.Duration) {
	RetryWaits.WithLabelValues(reason).Inc()
	RetryWaitSeconds.Add(d.Seconds())
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. Used by the CLI since it is too short-lived to be scraped.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
