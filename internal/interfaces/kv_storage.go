package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is absent or its TTL has lapsed
var ErrKeyNotFound = errors.New("key not found")

// CacheStorage defines operations for the TTL-backed key/value store behind the
// crawl state cache. Keys are case-insensitive; absence is not an error for
// callers that treat missing as "no recent state".
type CacheStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if absent or expired
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a key/value pair with no expiry
	Set(ctx context.Context, key string, value string) error

	// SetWithTTL inserts or updates a key/value pair that expires after ttl
	SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key/value pair; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}
