// Package redisstore keeps settings and telegram delivery state in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"orsi/internal/settings"
)

// KV stores settings values without expiry.
type KV struct {
	redis  *redis.Client
	prefix string
}

var _ settings.KV = (*KV)(nil)

func NewKV(rdb *redis.Client) *KV {
	return &KV{redis: rdb, prefix: "orsi:kv"}
}

func (k *KV) key(partition, key string) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, partition, key)
}

func (k *KV) Get(ctx context.Context, partition, key string) (string, bool, error) {
	v, err := k.redis.Get(ctx, k.key(partition, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (k *KV) Set(ctx context.Context, partition, key, value string) error {
	if err := k.redis.Set(ctx, k.key(partition, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
