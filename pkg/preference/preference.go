// Package preference resolves a user's persona through a two-tier cache: the
// fast cache answers reads when it can, the durable profile store is
// authoritative and is always written first.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/banter/pkg/cache"
	"github.com/papercomputeco/banter/pkg/logger"
	"github.com/papercomputeco/banter/pkg/metrics"
	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
)

// DefaultTTL is how long a cached persona stays valid.
const DefaultTTL = time.Hour

// ErrCacheNotUpdated is returned by SetPersona when the durable write
// succeeded but the cached copy could not be refreshed. The new persona is
// stored; reads may serve the old value until the cache entry expires.
var ErrCacheNotUpdated = errors.New("persona stored but cache not updated")

// Key returns the cache key holding the persona for userID.
func Key(userID string) string {
	return "persona:" + userID
}

// Config wires a Resolver.
type Config struct {
	Cache    cache.Store
	Profiles storage.Driver

	// TTL of cached entries. Defaults to DefaultTTL.
	TTL time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Resolver reads through and writes through the persona cache.
type Resolver struct {
	cache    cache.Store
	profiles storage.Driver
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates a Resolver.
func New(c Config) (*Resolver, error) {
	if c.Cache == nil {
		return nil, errors.New("preference: cache is required")
	}
	if c.Profiles == nil {
		return nil, errors.New("preference: profile store is required")
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Resolver{
		cache:    c.Cache,
		profiles: c.Profiles,
		ttl:      ttl,
		logger:   logger.OrNop(c.Logger),
		metrics:  c.Metrics,
	}, nil
}

// GetPersona returns the user's persona. It never fails: unknown users and
// store outages resolve to persona.Neutral.
func (r *Resolver) GetPersona(ctx context.Context, userID string) persona.Persona {
	key := Key(userID)

	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if p, perr := persona.Parse(cached); perr == nil {
			r.metrics.PersonaLookup(metrics.SourceCache)
			return p
		}
		r.logger.Warn("discarding unparsable cached persona", "key", key, "value", cached)
	case errors.Is(err, cache.ErrMiss):
	default:
		r.metrics.StoreError(metrics.StoreCache, "get")
		r.logger.Warn("persona cache read failed", "key", key, "error", err)
	}

	p := persona.Neutral
	source := metrics.SourceDefault

	profile, err := r.profiles.FindByExternalID(ctx, userID)
	switch {
	case err == nil:
		p = profile.Persona
		source = metrics.SourceStore
	case storage.IsNotFound(err):
		r.logger.Debug("no profile, using default persona", "user_id", userID)
	default:
		r.metrics.StoreError(metrics.StoreProfiles, "find")
		r.logger.Error("persona lookup failed, using default persona", "user_id", userID, "error", err)
	}
	r.metrics.PersonaLookup(source)

	if err := r.cache.SetWithTTL(ctx, key, p.String(), r.ttl); err != nil {
		r.metrics.StoreError(metrics.StoreCache, "set")
		r.logger.Warn("persona cache populate failed", "key", key, "error", err)
	}

	return p
}

// SetPersona writes p to the durable store and then to the cache. A durable
// failure (including storage.NotFoundError) is returned as is and leaves the
// cache untouched. A cache failure after a durable success returns
// ErrCacheNotUpdated.
func (r *Resolver) SetPersona(ctx context.Context, userID string, p persona.Persona) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", persona.ErrUnknown, uint8(p))
	}

	if err := r.profiles.UpdatePersona(ctx, userID, p); err != nil {
		if !storage.IsNotFound(err) {
			r.metrics.StoreError(metrics.StoreProfiles, "update")
		}
		return err
	}

	key := Key(userID)
	if err := r.cache.SetWithTTL(ctx, key, p.String(), r.ttl); err != nil {
		r.metrics.StoreError(metrics.StoreCache, "set")
		r.logger.Error("persona cache write failed", "key", key, "persona", p.String(), "error", err)
		return fmt.Errorf("%w: %w", ErrCacheNotUpdated, err)
	}

	r.logger.Info("persona updated", "user_id", userID, "persona", p.String())
	return nil
}
