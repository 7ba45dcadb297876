package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/search"
)

type redisSearchCache struct {
	rdb *redis.Client
}

func NewRedisSearchCache(rdb *redis.Client) service.SearchCache {
	return &redisSearchCache{rdb: rdb}
}

func (c *redisSearchCache) Get(ctx context.Context, key string) ([]search.Result, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var results []search.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (c *redisSearchCache) Set(ctx context.Context, key string, results []search.Result, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}
