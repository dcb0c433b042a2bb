package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through Redis cache in front of a Resolver. Concurrent
// lookups for the same product collapse into one upstream call.
type Cache struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache wraps a resolver with caching. A nil client disables caching.
func NewCache(inner Resolver, client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{inner: inner, client: client, ttl: ttl}
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("catalog:product:%d", productID)
}

// Resolve serves from cache when possible. Redis failures degrade to a
// direct lookup; they never fail the resolution.
func (c *Cache) Resolve(ctx context.Context, productID int64) (ProductInfo, error) {
	if c.client == nil {
		return c.inner.Resolve(ctx, productID)
	}
	key := cacheKey(productID)
	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var info ProductInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return info, nil
		}
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		info, err := c.inner.Resolve(ctx, productID)
		if err != nil {
			return ProductInfo{}, err
		}
		if data, err := json.Marshal(info); err == nil {
			c.client.Set(ctx, key, data, c.ttl)
		}
		return info, nil
	})
	if err != nil {
		return ProductInfo{}, err
	}
	return v.(ProductInfo), nil
}
