package core

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent or its TTL has elapsed.
var ErrKeyNotFound = errors.New("key not found")

// Store is an expiring key-value service. Every write carries an explicit TTL
// and values disappear automatically once it elapses. Absence is reported as
// ErrKeyNotFound and must always be checked by callers.
type Store interface {
	// Set stores value under key for ttl. ttl must be positive.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value under key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// GetDel atomically returns and removes the value under key. When several
	// callers race on the same key at most one of them receives the value;
	// the others get ErrKeyNotFound.
	GetDel(ctx context.Context, key string) (string, error)
}
