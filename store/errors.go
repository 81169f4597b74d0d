package store

import "errors"

var (
	// ErrEmptyKey is returned when a write is attempted without a key
	ErrEmptyKey = errors.New("store: empty key")

	// ErrNotConfigured is returned when a store is used without its backend
	ErrNotConfigured = errors.New("store: backend not configured")
)
