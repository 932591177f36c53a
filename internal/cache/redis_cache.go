package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"shopflow/backend/internal/domain"
)

const (
	storeConfigKey   = "pos:config:store"
	loyaltyConfigKey = "pos:config:loyalty"
)

type RedisConfigCache struct {
	client *redis.Client
}

func NewRedisConfigCache(addr string, password string, db int) *RedisConfigCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisConfigCache{client: client}
}

func (c *RedisConfigCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConfigCache) Close() error {
	return c.client.Close()
}

func (c *RedisConfigCache) GetStoreConfig(ctx context.Context) (*domain.StoreConfig, bool, error) {
	var cfg domain.StoreConfig
	ok, err := c.get(ctx, storeConfigKey, &cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (c *RedisConfigCache) SetStoreConfig(ctx context.Context, cfg *domain.StoreConfig, ttl time.Duration) error {
	return c.set(ctx, storeConfigKey, cfg, ttl)
}

func (c *RedisConfigCache) GetLoyaltyConfig(ctx context.Context) (*domain.LoyaltyConfig, bool, error) {
	var cfg domain.LoyaltyConfig
	ok, err := c.get(ctx, loyaltyConfigKey, &cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (c *RedisConfigCache) SetLoyaltyConfig(ctx context.Context, cfg *domain.LoyaltyConfig, ttl time.Duration) error {
	return c.set(ctx, loyaltyConfigKey, cfg, ttl)
}

func (c *RedisConfigCache) InvalidateStoreConfig(ctx context.Context) error {
	return c.client.Del(ctx, storeConfigKey).Err()
}

func (c *RedisConfigCache) InvalidateLoyaltyConfig(ctx context.Context) error {
	return c.client.Del(ctx, loyaltyConfigKey).Err()
}

func (c *RedisConfigCache) get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisConfigCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
