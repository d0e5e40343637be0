// ABOUTME: ResponseCache interface shared by the in-memory and Redis backends
// ABOUTME: Values are opaque bytes; callers own key derivation and encoding
package cache

import (
	"context"
	"time"
)

// DefaultTTL applies when Set is given a non-positive ttl
const DefaultTTL = time.Hour

// Cache stores serialized responses with a time to live
type Cache interface {
	// Get returns the value and true, or false when absent or expired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key, overwriting any existing entry
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Size counts live entries
	Size(ctx context.Context) (int, error)
}
