// Package cache holds the shared Redis client and the property cache built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"propertyhub/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout       = 5 * time.Second
	slowCommandThreshold = 100 * time.Millisecond
)

var client *redis.Client

// observeHook counts failed commands and logs slow ones. A cache miss is not a failure.
type observeHook struct{}

func (observeHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (observeHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(ctx, cmd.Name(), time.Since(start), err)
		return err
	}
}

func (observeHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe(ctx, "pipeline", time.Since(start), err)
		return err
	}
}

func observe(ctx context.Context, name string, elapsed time.Duration, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(name).Inc()
	}
	if elapsed > slowCommandThreshold {
		middleware.Logger.WarnContext(ctx, "Slow Redis command",
			slog.String("command", name),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// options accepts a bare host:port or a redis:// / rediss:// URL.
func options(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty redis address")
	}
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return opts, nil
}

// Connect builds an instrumented client and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := options(addr)
	if err != nil {
		return nil, err
	}

	c := redis.NewClient(opts)
	c.AddHook(observeHook{})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return c, nil
}

// InitRedis installs the package client. When Redis is unreachable the client
// stays nil and callers run without a cache.
func InitRedis(addr string) {
	c, err := Connect(context.Background(), addr)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without cache", slog.String("error", err.Error()))
		client = nil
		return
	}
	client = c
	middleware.Logger.Info("Redis connected", slog.String("addr", c.Options().Addr))
}

// GetClient returns the package client, or nil.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the package client. Tests use it with miniredis.
func SetClient(c *redis.Client) {
	client = c
}
