// package cache provides the key value stores used to
// cache responses to batch requests
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("value not found in the cache")

// Cache is a key value store with expiring entries.
// An expiration of -1 keeps the value until it is deleted.
type Cache interface {
	Set(ctx context.Context, key string, data []byte, expiration time.Duration) error
	// Get returns ErrNotFound if key has no unexpired value
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Healthcheck(ctx context.Context) error
}
