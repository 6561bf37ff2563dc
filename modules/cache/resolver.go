package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Resolver implements the read-through path: cache lookup, then a
// singleflight-collapsed load and populate on miss.
//
// Every namespace carries a generation that invalidation advances. A load
// only populates the cache if its namespace generation did not move while
// it ran, and loads of different generations never share a flight, so a
// read issued after a write never sees data loaded before it.
type Resolver struct {
	cache        *Advisory
	registry     *Registry
	logger       *zap.Logger
	sfGroup      singleflight.Group
	generations  map[string]*atomic.Uint64
	unregistered atomic.Uint64
}

// NewResolver creates a resolver over cache using the registry TTLs.
func NewResolver(cache *Advisory, registry *Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	gens := make(map[string]*atomic.Uint64, len(Namespaces))
	for _, n := range Namespaces {
		gens[n.Tag] = new(atomic.Uint64)
	}
	return &Resolver{cache: cache, registry: registry, logger: logger, generations: gens}
}

func (r *Resolver) generation(tag string) *atomic.Uint64 {
	if g, ok := r.generations[tag]; ok {
		return g
	}
	return &r.unregistered
}

// advance moves the generation of every namespace touched by targets. It
// must run before the targets are deleted.
func (r *Resolver) advance(targets []Target) {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		tag := t.Namespace
		if tag == "" {
			tag = NamespaceOf(t.Value)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		r.generation(tag).Add(1)
	}
}

// Resolve returns the value under key, loading and caching it on a miss.
// fromCache reports whether the value came from the cache. Concurrent
// misses for one key share a single load. Load errors are returned as is
// and nothing is cached.
func Resolve[T any](ctx context.Context, r *Resolver, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	if data, ok := r.cache.Get(ctx, key); ok {
		var cached T
		err := json.Unmarshal(data, &cached)
		if err == nil {
			return cached, true, nil
		}
		r.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
	}

	gen := r.generation(NamespaceOf(key))
	started := gen.Load()
	flight := key + "#" + strconv.FormatUint(started, 10)

	v, err, _ := r.sfGroup.Do(flight, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if gen.Load() != started {
			return value, nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			r.logger.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
			return value, nil
		}
		setCtx := context.WithoutCancel(ctx)
		r.cache.Set(setCtx, key, data, r.registry.TTL(key))
		// An invalidation that advanced the generation after the check may
		// have deleted before the Set landed.
		if gen.Load() != started {
			_, _ = r.cache.Delete(setCtx, key)
		}
		return value, nil
	})
	if err != nil {
		return zero, false, err
	}
	return v.(T), false, nil
}
