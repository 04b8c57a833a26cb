package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "legalmcp:tool:"

// Redis shares cached responses between server replicas.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.RedisAddr,
		Password:    opts.RedisPassword,
		DB:          opts.RedisDB,
		DialTimeout: opts.DialTimeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.RedisAddr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	logger := log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	logger.Printf("redis cache at %s (db %d, ttl %s)", opts.RedisAddr, opts.RedisDB, opts.TTL)
	return &Redis{client: client, ttl: opts.TTL, logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		recordLookup(ctx, BackendRedis, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	recordLookup(ctx, BackendRedis, true)
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	if err := r.client.Set(ctx, keyPrefix+key, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
