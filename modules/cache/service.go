package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config holds cache configuration.
type Config struct {
	// Backend is "redis" or "memory".
	Backend             string
	Redis               RedisConfig
	Prefix              string
	TTL                 TTLConfig
	Advisory            AdvisoryConfig
	InvalidationTimeout time.Duration
	Janitor             JanitorConfig
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Backend:             "redis",
		Redis:               RedisConfig{Addr: "localhost:6379"},
		Prefix:              "catalog:",
		TTL:                 DefaultTTLConfig(),
		Advisory:            DefaultAdvisoryConfig(),
		InvalidationTimeout: 2 * time.Second,
		Janitor:             JanitorConfig{Interval: 5 * time.Minute},
	}
}

// NewStore builds the backend selected by cfg.Backend.
func NewStore(cfg Config) Store {
	if cfg.Backend == "memory" {
		return NewMemoryStore()
	}
	return NewRedisStore(NewRedisClient(cfg.Redis), cfg.Prefix)
}

// Service is the cache port used by the catalog: read-through resolution,
// invalidation and administration over one injected Store.
type Service struct {
	cache       *Advisory
	registry    *Registry
	resolver    *Resolver
	coordinator *Coordinator
}

// NewService assembles the cache components around store.
func NewService(store Store, cfg Config, logger *zap.Logger, recorder Recorder) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry, err := NewRegistry(cfg.TTL)
	if err != nil {
		return nil, err
	}
	advisory := NewAdvisory(store, cfg.Advisory, logger, recorder)
	return &Service{
		cache:       advisory,
		registry:    registry,
		resolver:    NewResolver(advisory, registry, logger),
		coordinator: NewCoordinator(advisory, cfg.InvalidationTimeout, logger, recorder),
	}, nil
}

// Start runs the invalidation supervisor.
func (s *Service) Start() {
	s.coordinator.Start()
}

// Stop drains the invalidation supervisor.
func (s *Service) Stop(ctx context.Context) error {
	return s.coordinator.Stop(ctx)
}

// Cache returns the advisory cache.
func (s *Service) Cache() *Advisory {
	return s.cache
}

// Registry returns the namespace registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Resolver returns the read-through resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Invalidate clears targets. It never fails the caller. Loads already in
// flight for the touched namespaces do not populate the cache.
func (s *Service) Invalidate(ctx context.Context, targets ...Target) {
	s.resolver.advance(targets)
	s.coordinator.Invalidate(ctx, targets...)
}

// Flush deletes every cached entry and returns the number removed.
func (s *Service) Flush(ctx context.Context) (int64, error) {
	return s.cache.DeleteAll(ctx)
}

// Stats returns the current cache statistics.
func (s *Service) Stats() StatsSnapshot {
	return s.cache.Stats()
}

// ResetStats resets all statistics counters.
func (s *Service) ResetStats() {
	s.cache.ResetStats()
}

// Close closes the backend.
func (s *Service) Close() error {
	return s.cache.Close()
}
