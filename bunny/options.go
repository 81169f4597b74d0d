package bunny

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*clientOptions)

// BreakerConfig configures the optional circuit breaker around attempts.
type BreakerConfig struct {
	// FailureRatio opens the circuit once this share of requests failed
	FailureRatio float64
	// MinRequests is the sample size needed before tripping
	MinRequests uint32
	// Timeout is how long the circuit stays open
	Timeout time.Duration
}

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	httpClient    *http.Client
	timeout       time.Duration
	builder       RequestBuilder
	bearer        bool
	endpoints     Endpoints
	clock         Clock
	maxAttempts   int
	baseDelay     time.Duration
	uploadTimeout time.Duration
	rps           float64
	burst         int
	breaker       *BreakerConfig
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout:       30 * time.Second,
		endpoints:     DefaultEndpoints(),
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		uploadTimeout: 20 * time.Second,
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRequestBuilder replaces the request builder entirely.
func WithRequestBuilder(b RequestBuilder) Option {
	return func(o *clientOptions) {
		o.builder = b
	}
}

// WithBearerAuth authenticates with Authorization: Bearer instead of the
// AccessKey header.
func WithBearerAuth() Option {
	return func(o *clientOptions) {
		o.bearer = true
	}
}

// WithEndpoints overrides the API base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(o *clientOptions) {
		if e.Stream != "" {
			o.endpoints.Stream = e.Stream
		}
		if e.Account != "" {
			o.endpoints.Account = e.Account
		}
	}
}

// WithClock replaces the clock used for backoff and rate-limit waits.
func WithClock(c Clock) Option {
	return func(o *clientOptions) {
		o.clock = c
	}
}

// WithMaxAttempts sets the number of attempts per call.
func WithMaxAttempts(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// WithUploadTimeout bounds each upload attempt.
func WithUploadTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.uploadTimeout = d
		}
	}
}

// WithRateLimit paces outgoing attempts on the client side. A non-positive
// rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithCircuitBreaker wraps every attempt in a circuit breaker.
func WithCircuitBreaker(cfg BreakerConfig) Option {
	return func(o *clientOptions) {
		o.breaker = &cfg
	}
}
