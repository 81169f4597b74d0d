package bunny

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/s0up4200/wpbs/metrics"
	"github.com/s0up4200/wpbs/transient"
)

// maxLoggedBody caps request and response bodies in debug logs
const maxLoggedBody = 2048

// Client represents a Bunny.net API client
type Client struct {
	creds         Credentials
	builder       RequestBuilder
	httpClient    *http.Client
	store         transient.Store
	retrier       *Retrier
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[Response]
	maxAttempts   int
	uploadTimeout time.Duration
	logger        zerolog.Logger
}

// New creates a new Bunny client. store holds the shared rate-limit marker
// and collection locks; nil uses a private in-memory store.
func New(creds Credentials, store transient.Store, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if creds.AccessKey == "" {
		return nil, ErrMissingAccessKey
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	clock := o.clock
	if clock == nil {
		clock = realClock{}
	}
	if store == nil {
		store = transient.NewMemoryStore(transient.WithNow(clock.Now))
	}

	builder := o.builder
	if builder == nil {
		if o.bearer {
			builder = NewBearerBuilder(creds.AccessKey, o.endpoints)
		} else {
			builder = NewAccessKeyBuilder(creds.AccessKey, o.endpoints)
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: o.timeout}
	}

	c := &Client{
		creds:         creds,
		builder:       builder,
		httpClient:    httpClient,
		store:         store,
		retrier:       NewRetrier(store, clock, o.baseDelay, logger),
		maxAttempts:   o.maxAttempts,
		uploadTimeout: o.uploadTimeout,
		logger:        logger,
	}

	if o.rps > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.rps), burst)
	}
	if o.breaker != nil {
		c.breaker = newBreaker(*o.breaker, logger)
	}

	return c, nil
}

// LibraryID returns the configured Stream library
func (c *Client) LibraryID() string {
	return c.creds.LibraryID
}

// Store returns the transient store shared by the client and its handlers
func (c *Client) Store() transient.Store {
	return c.store
}

// Send issues a JSON call against the Stream API. For non-GET methods a
// non-empty data value is encoded as the JSON body.
func (c *Client) Send(ctx context.Context, endpoint, method string, data any) (Response, error) {
	return c.sendJSON(ctx, StreamAPI, endpoint, method, data)
}

// SendAccount issues a JSON call against the account API
func (c *Client) SendAccount(ctx context.Context, endpoint, method string, data any) (Response, error) {
	return c.sendJSON(ctx, AccountAPI, endpoint, method, data)
}

func (c *Client) sendJSON(ctx context.Context, api API, endpoint, method string, data any) (Response, error) {
	upper, err := normalizeMethod(method)
	if err != nil {
		return nil, err
	}

	req := &Request{API: api, Endpoint: endpoint, Method: upper}
	if upper != http.MethodGet && !isEmptyPayload(data) {
		body, err := json.Marshal(data)
		if err != nil {
			return nil, &RequestError{Op: "encode request body", Err: err}
		}
		req.Body = body
	}
	return c.Do(ctx, req)
}

// Do sends req through the retry coordinator.
func (c *Client) Do(ctx context.Context, req *Request) (Response, error) {
	method, err := normalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}
	req.Method = method

	op := method + " " + req.Endpoint
	return c.ExecuteWithRetry(ctx, op, c.maxAttempts, func(ctx context.Context) (Response, error) {
		return c.attempt(ctx, req)
	})
}

// ExecuteWithRetry runs an arbitrary attempt under the client's retry
// coordinator and shared rate-limit marker.
func (c *Client) ExecuteWithRetry(ctx context.Context, op string, maxAttempts int, attempt Attempt) (Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}
	return c.retrier.Execute(ctx, op, maxAttempts, attempt)
}

// attempt performs a single paced, breaker-guarded round trip
func (c *Client) attempt(ctx context.Context, req *Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.breaker == nil {
		return c.roundTrip(ctx, req)
	}

	resp, err := c.breaker.Execute(func() (Response, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(KindCircuitOpen, "%s: %v", ErrCircuitOpen.Message, err)
	}
	return resp, err
}

// roundTrip builds, sends and classifies one HTTP exchange.
func (c *Client) roundTrip(ctx context.Context, req *Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := c.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("api", req.API.String()).
		Str("method", req.Method).
		Str("endpoint", req.Endpoint).
		Str("library_id", c.creds.LibraryID).
		Msg("Sending request to Bunny API")
	if e := c.logger.Debug(); e.Enabled() {
		e.Interface("headers", redactHeaders(httpReq.Header)).Msg("Request headers")
	}
	if len(req.Body) > 0 {
		c.logger.Debug().Str("body", truncate(string(req.Body))).Msg("Request body")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordAttempt(req.API.String(), req.Method, "transport_error", 0, time.Since(start))
		return nil, &TransportError{Method: req.Method, Endpoint: req.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordAttempt(req.API.String(), req.Method, "transport_error", resp.StatusCode, time.Since(start))
		return nil, &TransportError{Method: req.Method, Endpoint: req.Endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("endpoint", req.Endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Bunny API response")
	c.logger.Trace().Str("body", truncate(string(body))).Msg("Response body")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		outcome := "http_error"
		if apiErr.IsRateLimited() {
			outcome = "rate_limited"
			apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		metrics.RecordAttempt(req.API.String(), req.Method, outcome, resp.StatusCode, time.Since(start))
		return nil, apiErr
	}

	metrics.RecordAttempt(req.API.String(), req.Method, "success", resp.StatusCode, time.Since(start))
	return Response(body), nil
}

func newBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[Response] {
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	metrics.CircuitBreakerState.Set(0)
	return gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "bunny-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// Client errors and throttling say nothing about upstream health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			switch to {
			case gobreaker.StateClosed:
				metrics.CircuitBreakerState.Set(0)
			case gobreaker.StateHalfOpen:
				metrics.CircuitBreakerState.Set(1)
			case gobreaker.StateOpen:
				metrics.CircuitBreakerState.Set(2)
			}
		},
	})
}

// isEmptyPayload reports nil values and empty maps, slices and strings
func isEmptyPayload(data any) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
