package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("catalog cache miss")

type Cache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, s *Snapshot) error
}

type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (*Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return &s, nil
}

func (c *RedisCache) Set(ctx context.Context, s *Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
