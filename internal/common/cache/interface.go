package cache

import (
	"context"
	"time"
)

// Cache defines the key-value cache operations the result service relies on.
// Implementations must return an empty string and nil error on a miss.
type Cache interface {
	// Get retrieves the value for the given key
	Get(ctx context.Context, key string) (string, error)

	// MGet retrieves several keys at once; missing keys yield empty strings
	MGet(ctx context.Context, keys ...string) ([]string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}
