package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is a Cache holding its values in process memory,
// used when no redis endpoint is configured and in tests
type InMemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

var _ Cache = (*InMemoryCache)(nil)

type cacheItem struct {
	data []byte
	// zero expiration never expires
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheItem),
	}
}

func (c *InMemoryCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	item := cacheItem{data: append([]byte(nil), data...)}
	if expiration != -1 {
		item.expiration = time.Now().Add(expiration)
	}

	c.data[key] = item

	return nil
}

func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, ok := c.data[key]
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}

	return item.data, nil
}

// GetAll returns every unexpired value keyed by its cache key
func (c *InMemoryCache) GetAll(ctx context.Context) map[string][]byte {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	all := make(map[string][]byte, len(c.data))
	for key, item := range c.data {
		if item.expired(now) {
			continue
		}
		all[key] = item.data
	}

	return all
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

func (c *InMemoryCache) Healthcheck(ctx context.Context) error {
	return nil
}
