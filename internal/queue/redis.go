// Package queue implements the durable FIFO job queue (C4) over
// Redis: submit, get-by-id, state transitions, and terminal-result
// publication, with at-least-once delivery and retries disabled by
// default (spec.md §9).
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/iamjoytank/docker-code-runner/internal/logging"
)

// RedisConfig configures the broker connection.
type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible connection-pool defaults,
// matching the teacher's internal/db.DefaultRedisConfig.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// newRedisClient builds a go-redis client from config, preferring URL
// when set.
func newRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("queue: invalid redis URL: %w", err)
		}
		parsed.PoolSize = cfg.PoolSize
		parsed.DialTimeout = cfg.DialTimeout
		parsed.ReadTimeout = cfg.ReadTimeout
		parsed.WriteTimeout = cfg.WriteTimeout
		opts = parsed
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: failed to connect to redis: %w", err)
	}

	logging.S().Infow("queue: connected to redis", "addr", opts.Addr)
	return client, nil
}
