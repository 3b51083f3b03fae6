package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/YelzhanWeb/waiter-orders/internal/config"
)

const keyPrefix = "waiter-orders"

// Cache is a shared routing cache, so every service instance sees the same
// station mapping until its TTL runs out.
type Cache struct {
	client *goredis.Client
}

func NewCache(cfg config.RedisConfig) *Cache {
	return &Cache{
		client: goredis.NewClient(&goredis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 2 * time.Second,
			ReadTimeout: time.Second,
		}),
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get reports a missing key as a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) GenerateKey(branch, itemGroup string) string {
	return fmt.Sprintf("%s:kitchen_station_mapping:%s:%s", keyPrefix, branch, itemGroup)
}

func (c *Cache) Close() error {
	return c.client.Close()
}
