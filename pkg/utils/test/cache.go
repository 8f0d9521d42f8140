package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/banter/pkg/cache"
	"github.com/papercomputeco/banter/pkg/cache/inmemory"
)

// FlakyCache is a cache.Store over an inmemory.Store that records every call
// and can be told to fail individual operations.
type FlakyCache struct {
	*inmemory.Store

	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]error
}

// NewFlakyCache creates a FlakyCache. Options are passed to the inner store.
func NewFlakyCache(opts ...inmemory.Option) *FlakyCache {
	return &FlakyCache{
		Store:  inmemory.New(opts...),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

var _ cache.Store = (*FlakyCache)(nil)

// Fail makes op ("SetWithTTL", "Get", "AppendAndTrim", "ReadRange",
// "Delete", "Ping") return err. A nil err clears the failure.
func (c *FlakyCache) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failOn, op)
		return
	}
	c.failOn[op] = err
}

// Calls returns how often op was called.
func (c *FlakyCache) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *FlakyCache) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	return c.failOn[op]
}

func (c *FlakyCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.record("SetWithTTL"); err != nil {
		return err
	}
	return c.Store.SetWithTTL(ctx, key, value, ttl)
}

func (c *FlakyCache) Get(ctx context.Context, key string) (string, error) {
	if err := c.record("Get"); err != nil {
		return "", err
	}
	return c.Store.Get(ctx, key)
}

func (c *FlakyCache) AppendAndTrim(ctx context.Context, key, value string, maxLen int, ttl time.Duration) error {
	if err := c.record("AppendAndTrim"); err != nil {
		return err
	}
	return c.Store.AppendAndTrim(ctx, key, value, maxLen, ttl)
}

func (c *FlakyCache) ReadRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := c.record("ReadRange"); err != nil {
		return nil, err
	}
	return c.Store.ReadRange(ctx, key, start, stop)
}

func (c *FlakyCache) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.record("Delete"); err != nil {
		return false, err
	}
	return c.Store.Delete(ctx, key)
}

func (c *FlakyCache) Ping(ctx context.Context) error {
	if err := c.record("Ping"); err != nil {
		return err
	}
	return c.Store.Ping(ctx)
}
