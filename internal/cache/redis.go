package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Client wraps Redis for rate limiting and response caching. A nil *Client
// behaves as an empty cache that never rate limits.
type Client struct {
	rdb    *redis.Client
	prefix string
}

func NewClient(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb, prefix: "appsuite:"}, nil
}

// IsRateLimited counts one hit for key in a fixed window and reports whether
// the window has seen more than limit hits. A counter found without a TTL gets
// one, so a lost EXPIRE cannot lock the key out. Redis errors fail open.
func (c *Client) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) bool {
	if c == nil {
		return false
	}
	k := fmt.Sprintf("%sratelimit:%s", c.prefix, key)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false
	}
	if ttl.Val() < 0 {
		if err := c.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return false
		}
	}

	return incr.Val() > int64(limit)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, ErrMiss
	}
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, c.prefix+key, data, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
