// Package cache defines the fast key-value store that sits in front of the
// durable profile store. It holds short-lived string values and bounded
// lists, each with its own expiry.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ErrInvalidLength is returned by AppendAndTrim when maxLen is not positive.
var ErrInvalidLength = errors.New("max length must be at least 1")

// Store is a string key-value store with per-key expiry.
type Store interface {
	// SetWithTTL stores value under key, replacing any previous value, and
	// expires it after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value under key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// AppendAndTrim appends value to the list under key, keeps only the
	// newest maxLen elements and resets the list's expiry to ttl. The three
	// steps are applied atomically.
	AppendAndTrim(ctx context.Context, key, value string, maxLen int, ttl time.Duration) error

	// ReadRange returns the list elements between start and stop inclusive.
	// Negative indexes count from the end, so (0, -1) reads the whole list.
	// An absent key yields an empty slice.
	ReadRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
