// Package cache stores rendered chart payloads in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/observability"
)

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "sbl:"

// ChartCache caches chart payloads per session. Entries expire after TTL and
// are dropped as a whole when a session is re-run.
type ChartCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Options contains configuration for creating a ChartCache.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // defaults to DefaultPrefix
	TTL      time.Duration // 0 keeps entries until invalidated
	Logger   *zap.Logger
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*ChartCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client. Addr, Password and DB are ignored.
func NewWithClient(client *redis.Client, opts Options) *ChartCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartCache{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
		logger: logger,
	}
}

// Close closes the underlying client.
func (c *ChartCache) Close() error {
	return c.client.Close()
}

// Key returns the Redis key of a chart payload.
func (c *ChartCache) Key(session, chart string) string {
	return c.sessionPrefix(session) + chart
}

// sessionPrefix escapes the session name so that it holds neither the key
// separator nor SCAN glob metacharacters.
func (c *ChartCache) sessionPrefix(session string) string {
	return c.prefix + "chart:" + url.QueryEscape(session) + ":"
}

// Get decodes a cached payload into dest. Returns false on a miss.
func (c *ChartCache) Get(ctx context.Context, session, chart string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.Key(session, chart)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.RecordCacheLookup(false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", session, chart, err)
	}

	if err := sonic.Unmarshal(data, dest); err != nil {
		// A payload we cannot decode is treated as a miss and overwritten later.
		c.logger.Warn("drop undecodable chart payload",
			zap.String("session", session),
			zap.String("chart", chart),
			zap.Error(err),
		)
		observability.RecordCacheLookup(false)
		return false, nil
	}

	observability.RecordCacheLookup(true)
	return true, nil
}

// Set stores a payload under the session's chart key.
func (c *ChartCache) Set(ctx context.Context, session, chart string, value any) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", session, chart, err)
	}
	if err := c.client.Set(ctx, c.Key(session, chart), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s/%s: %w", session, chart, err)
	}
	return nil
}

// Invalidate deletes every cached chart of a session and returns the number
// of keys removed.
func (c *ChartCache) Invalidate(ctx context.Context, session string) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.sessionPrefix(session)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", session, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", session, err)
	}
	return int(n), nil
}
