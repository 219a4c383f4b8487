package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func statusKey(orderID string) string { return "order:status:" + orderID }

func (r *RedisCache) SetStatus(ctx context.Context, v usecase.StatusView) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, statusKey(v.OrderID), raw, r.ttl).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (usecase.StatusView, bool, error) {
	raw, err := r.rdb.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.StatusView{}, false, nil
	}
	if err != nil {
		return usecase.StatusView{}, false, err
	}
	var v usecase.StatusView
	if err := json.Unmarshal(raw, &v); err != nil {
		// treat as a miss; the next write replaces it
		return usecase.StatusView{}, false, nil
	}
	return v, true, nil
}

var _ usecase.OrderCache = (*RedisCache)(nil)
