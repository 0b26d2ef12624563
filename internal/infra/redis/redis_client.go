package redis

import (
	"context"
	"sync"
	"time"

	"heystak-spider/internal/config"

	"github.com/go-redis/redis/v8"
)

// Client is the minimal command surface the job store needs: hash-field
// get/set, list push/pop/remove, and key deletion.
type Client interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key, field string, value interface{}) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	LPush(ctx context.Context, key string, values ...interface{}) error
	RPop(ctx context.Context, key string) (string, error)
	LRem(ctx context.Context, key string, count int64, value interface{}) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Nil is re-exported so callers can detect missing keys without importing
// the driver.
const Nil = redis.Nil

const (
	maxReconnectAttempts = 5
	baseReconnectDelay   = 200 * time.Millisecond
	maxReconnectDelay    = 5 * time.Second
)

var _ Client = (*redClient)(nil)

// redClient wraps the driver with lazy reconnect. A connection that
// reports itself closed is discarded; the next use attempts to dial again
// with capped, bounded-delay retries so a dead store never turns into a
// tight failure loop.
type redClient struct {
	opts *redis.Options

	mu          sync.Mutex
	cli         *redis.Client
	attempts    int
	nextAttempt time.Time
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := &redClient{opts: opts}
	cli, err := c.connect(ctx)
	if err != nil {
		// Return the wrapper anyway: it reconnects lazily, so the caller
		// may choose to start degraded instead of crashing.
		return c, err
	}
	c.cli = cli
	return c, nil
}

func (c *redClient) connect(ctx context.Context) (*redis.Client, error) {
	cli := redis.NewClient(c.opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return cli, nil
}

// get returns a live client, lazily reconnecting when the previous one was
// discarded. Attempts are capped; between caps the backoff delay doubles
// up to maxReconnectDelay, after which the counter resets so a recovered
// store is eventually picked up again.
func (c *redClient) get(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cli != nil {
		return c.cli, nil
	}
	now := time.Now()
	if now.Before(c.nextAttempt) {
		return nil, redis.ErrClosed
	}
	cli, err := c.connect(ctx)
	if err != nil {
		c.attempts++
		delay := baseReconnectDelay << uint(c.attempts)
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		c.nextAttempt = now.Add(delay)
		if c.attempts >= maxReconnectAttempts {
			c.attempts = 0
			c.nextAttempt = now.Add(maxReconnectDelay)
		}
		return nil, err
	}
	c.cli = cli
	c.attempts = 0
	c.nextAttempt = time.Time{}
	return cli, nil
}

// drop discards the current connection when err says it is unusable.
func (c *redClient) drop(err error) {
	if err == nil || err == redis.Nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != nil {
		_ = c.cli.Close()
		c.cli = nil
	}
}

func (c *redClient) Ping(ctx context.Context) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.Ping(ctx).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) HSet(ctx context.Context, key, field string, value interface{}) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.HSet(ctx, key, field, value).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) HGet(ctx context.Context, key, field string) (string, error) {
	cli, err := c.get(ctx)
	if err != nil {
		return "", err
	}
	v, err := cli.HGet(ctx, key, field).Result()
	if err != nil && err != redis.Nil {
		c.drop(err)
	}
	return v, err
}

func (c *redClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cli, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	v, err := cli.HGetAll(ctx, key).Result()
	if err != nil {
		c.drop(err)
	}
	return v, err
}

func (c *redClient) HDel(ctx context.Context, key string, fields ...string) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.HDel(ctx, key, fields...).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) LPush(ctx context.Context, key string, values ...interface{}) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.LPush(ctx, key, values...).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) RPop(ctx context.Context, key string) (string, error) {
	cli, err := c.get(ctx)
	if err != nil {
		return "", err
	}
	v, err := cli.RPop(ctx, key).Result()
	if err != nil && err != redis.Nil {
		c.drop(err)
	}
	return v, err
}

func (c *redClient) LRem(ctx context.Context, key string, count int64, value interface{}) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.LRem(ctx, key, count, value).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	cli, err := c.get(ctx)
	if err != nil {
		return err
	}
	if err := cli.Del(ctx, keys...).Err(); err != nil {
		c.drop(err)
		return err
	}
	return nil
}

func (c *redClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli == nil {
		return nil
	}
	err := c.cli.Close()
	c.cli = nil
	return err
}
