package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Keys for one store path share a hash tag so the write script stays on a
// single cluster slot.

func DataKey(prefix, path string) string {
	return fmt.Sprintf("%s:{%s}:data", prefix, path)
}

func VersionKey(prefix, path string) string {
	return fmt.Sprintf("%s:{%s}:version", prefix, path)
}

func ChangesChannel(prefix, path string) string {
	return fmt.Sprintf("%s:{%s}:changes", prefix, path)
}

func RateLimitKey(prefix, key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", prefix, key)
}
