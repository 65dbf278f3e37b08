package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNilRedis = errors.New("redis client is nil")

// RedisConfig is the connection setup for the recording-callback dedupe
// store. Only small SETNX traffic goes through it, so the pool stays small.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout time.Duration
	// OpTimeout bounds each read and write.
	OpTimeout   time.Duration
	PoolSize    int
	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	c.DialTimeout = orDuration(c.DialTimeout, 3*time.Second)
	c.OpTimeout = orDuration(c.OpTimeout, time.Second)
	c.PingTimeout = orDuration(c.PingTimeout, 2*time.Second)
	c.PoolSize = orInt(c.PoolSize, 5)
	return c
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// ClaimOnce marks key as seen for ttl. It returns true only for the first
// claim; later claims within ttl return false.
func ClaimOnce(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, ErrNilRedis
	case key == "":
		return false, fmt.Errorf("claim key is required")
	case ttl <= 0:
		return false, fmt.Errorf("claim ttl must be > 0")
	}
	return rdb.SetNX(ctx, key, 1, ttl).Result()
}

// ReleaseClaim drops a claim taken by ClaimOnce. Releasing a missing key is not an error.
func ReleaseClaim(ctx context.Context, rdb redis.Cmdable, key string) error {
	switch {
	case rdb == nil:
		return ErrNilRedis
	case key == "":
		return fmt.Errorf("claim key is required")
	}
	return rdb.Del(ctx, key).Err()
}
