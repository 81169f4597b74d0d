package transient

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidTTL is returned when a non-positive TTL is passed to SetNX.
var ErrInvalidTTL = errors.New("ttl must be positive")

// Store is a time-bounded key-value store used for coordination markers
// such as the shared rate-limit deadline and collection creation locks.
//
// Implementations must be safe for concurrent use. A zero ttl passed to Set
// means the key never expires.
type Store interface {
	// Get returns the value and true when the key exists and has not expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent. It reports whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteIfValue removes key only while it still holds value, and reports
	// whether it did. Lock holders release with their own token this way.
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
