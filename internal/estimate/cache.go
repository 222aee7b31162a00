package estimate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ozonscout/internal/model"
)

const cacheKeyPrefix = "ozonscout:est:"

// Cache holds computed estimates in Redis. Entries expire on their own and
// are dropped eagerly whenever a new snapshot arrives for the product.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, productID string) (model.SalesEstimate, bool) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+productID).Bytes()
	if err != nil {
		return model.SalesEstimate{}, false
	}
	var est model.SalesEstimate
	if err := json.Unmarshal(raw, &est); err != nil {
		return model.SalesEstimate{}, false
	}
	return est, true
}

func (c *Cache) Set(ctx context.Context, est model.SalesEstimate) error {
	raw, err := json.Marshal(est)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKeyPrefix+est.ProductID, raw, c.ttl).Err()
}

// Invalidate implements snapshot.Invalidator.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+productID).Err()
}
