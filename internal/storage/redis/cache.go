package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
	prefix string
}

func NewClient(redisURL, prefix string) *Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	client := redis.NewClient(opt)

	return &Client{Client: client, prefix: prefix}
}

// Connect creates a client and verifies the server answers.
func Connect(ctx context.Context, redisURL, prefix string) (*Client, error) {
	c := NewClient(redisURL, prefix)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Get implements storage.Store. Values never expire.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := c.Client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.Client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
