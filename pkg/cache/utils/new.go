// Package cacheutils builds a cache store from configuration.
package cacheutils

import (
	"fmt"

	"github.com/papercomputeco/banter/pkg/cache"
	"github.com/papercomputeco/banter/pkg/cache/inmemory"
	"github.com/papercomputeco/banter/pkg/cache/redis"
)

type NewStoreOpts struct {
	// ProviderType is one of "redis" or "memory".
	ProviderType string
	Addr         string
	Password     string
	DB           int
}

func NewStore(o *NewStoreOpts) (cache.Store, error) {
	switch o.ProviderType {
	case "redis":
		return redis.New(redis.Config{
			Addr:     o.Addr,
			Password: o.Password,
			DB:       o.DB,
		}), nil
	case "memory":
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", o.ProviderType)
	}
}
