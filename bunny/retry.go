package bunny

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/wpbs/metrics"
	"github.com/s0up4200/wpbs/transient"
)

// RetryAfterKey is the transient key holding the shared "do not call before"
// deadline, as unix milliseconds.
const RetryAfterKey = "bunny_api_retry_after"

// Retry defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Attempt performs one try of a call.
type Attempt func(ctx context.Context) (Response, error)

// Clock abstracts time so waits can be observed in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier drives attempts with exponential backoff and honours the shared
// rate-limit marker kept in a transient store.
type Retrier struct {
	store     transient.Store
	clock     Clock
	baseDelay time.Duration
	logger    zerolog.Logger
}

// NewRetrier creates a retrier. A nil clock uses wall time.
func NewRetrier(store transient.Store, clock Clock, baseDelay time.Duration, logger zerolog.Logger) *Retrier {
	if clock == nil {
		clock = realClock{}
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Retrier{
		store:     store,
		clock:     clock,
		baseDelay: baseDelay,
		logger:    logger,
	}
}

// Backoff returns the wait after the given zero-based failed attempt:
// base, 2*base, 4*base, ...
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return r.baseDelay << uint(attempt)
}

// Execute runs attempt up to maxAttempts times. Every failed attempt is
// followed by a wait; a 429 response replaces the backoff with the server's
// Retry-After (or the backoff itself when absent) and publishes the deadline
// to other callers. When all attempts fail an *ExhaustedError is returned.
// Local request errors, Permanent errors, an open circuit and context
// cancellation end the call immediately.
func (r *Retrier) Execute(ctx context.Context, op string, maxAttempts int, attempt Attempt) (Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last error
	for i := 0; i < maxAttempts; i++ {
		if err := r.waitForMarker(ctx); err != nil {
			return nil, err
		}

		resp, err := attempt(ctx)
		if err == nil {
			if i > 0 {
				r.logger.Debug().Str("op", op).Int("attempt", i+1).Msg("Request succeeded after retry")
			}
			return resp, nil
		}
		last = err

		if isFatal(ctx, err) {
			return nil, err
		}

		delay := r.Backoff(i)
		reason := "backoff"
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
			reason = "rate_limited"
			if apiErr.RetryAfter > 0 {
				delay = apiErr.RetryAfter
			}
			r.setMarker(ctx, delay)
		}

		r.logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", i+1).
			Int("max_attempts", maxAttempts).
			Dur("delay", delay).
			Str("reason", reason).
			Msg("Bunny API attempt failed, backing off")

		metrics.RecordWait(reason, delay)
		if err := r.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	metrics.RetryExhausted.Inc()
	r.logger.Error().Err(last).Str("op", op).Int("attempts", maxAttempts).Msg("Bunny API request failed after retries")
	return nil, &ExhaustedError{Op: op, Attempts: maxAttempts, Last: last}
}

// waitForMarker sleeps until a deadline published by any caller has passed.
// Store failures are logged and ignored; the marker is best effort.
func (r *Retrier) waitForMarker(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	val, ok, err := r.store.Get(ctx, RetryAfterKey)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to read rate limit marker")
		return nil
	}
	if !ok {
		return nil
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		r.logger.Warn().Str("value", val).Msg("Ignoring malformed rate limit marker")
		return nil
	}

	wait := time.UnixMilli(ms).Sub(r.clock.Now())
	if wait <= 0 {
		return nil
	}
	r.logger.Info().Dur("wait", wait).Msg("Rate limited by Bunny API, waiting before next request")
	metrics.RateLimitMarkerWaits.Inc()
	return r.clock.Sleep(ctx, wait)
}

// setMarker publishes now+delay with a ttl of delay
func (r *Retrier) setMarker(ctx context.Context, delay time.Duration) {
	if r.store == nil {
		return
	}
	until := r.clock.Now().Add(delay)
	if err := r.store.Set(ctx, RetryAfterKey, strconv.FormatInt(until.UnixMilli(), 10), delay); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to store rate limit marker")
	}
}

func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrInvalidMethod)
}
