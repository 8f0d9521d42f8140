// Package redis implements cache.Store on a Redis server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/banter/pkg/cache"
)

// Config holds the connection settings for the Redis cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements cache.Store using go-redis.
type Store struct {
	client *goredis.Client
}

// New creates a Store connected to the configured server. The connection is
// lazy; call Ping to verify it.
func New(c Config) *Store {
	return NewFromClient(goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}))
}

// NewFromClient wraps an existing client. The Store takes ownership and
// closes it on Close.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// SetWithTTL implements cache.Store.
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get implements cache.Store.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", cache.ErrMiss
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// AppendAndTrim implements cache.Store with a MULTI/EXEC pipeline of
// RPUSH, LTRIM and EXPIRE.
func (s *Store) AppendAndTrim(ctx context.Context, key, value string, maxLen int, ttl time.Duration) error {
	if maxLen < 1 {
		return cache.ErrInvalidLength
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, value)
		pipe.LTrim(ctx, key, int64(-maxLen), -1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// ReadRange implements cache.Store.
func (s *Store) ReadRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return vals, nil
}

// Delete implements cache.Store.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("del %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping implements cache.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close implements cache.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
