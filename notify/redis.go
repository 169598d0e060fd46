package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"argus/core"

	"github.com/redis/go-redis/v9"
)

// RedisChannel publishes alerts as JSON on a Redis pub/sub channel
type RedisChannel struct {
	client  *redis.Client
	channel string
}

func NewRedisChannel(addr, password string, db int, channel string) *RedisChannel {
	return &RedisChannel{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		channel: channel,
	}
}

func (c *RedisChannel) Name() string { return "redis" }

func (c *RedisChannel) Send(ctx context.Context, alert *core.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", c.channel, err)
	}
	return nil
}

// Ping checks connectivity to the Redis server
func (c *RedisChannel) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisChannel) Close() error {
	return c.client.Close()
}
