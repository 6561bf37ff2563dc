package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"go.uber.org/zap"
)

// PluginModule provides the catalog cache as a mono plugin module.
// Plugins start first and stop last.
type PluginModule struct {
	container types.ServiceContainer
	config    Config
	logger    *zap.Logger
	service   *Service
	janitor   *Janitor
}

// Compile-time interface checks.
var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the cache plugin. The backend client is created
// immediately so Port() can be called before Start(); Redis connects lazily.
func NewPluginModule(cfg Config, logger *zap.Logger, recorder Recorder) (*PluginModule, error) {
	return NewPluginModuleWithStore(NewStore(cfg), cfg, logger, recorder)
}

// NewPluginModuleWithStore creates the cache plugin over an existing store.
func NewPluginModuleWithStore(store Store, cfg Config, logger *zap.Logger, recorder Recorder) (*PluginModule, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := NewService(store, cfg, logger, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	return &PluginModule{
		config:  cfg,
		logger:  logger,
		service: svc,
		janitor: NewJanitor(cfg.Janitor, svc.Cache(), logger),
	}, nil
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "cache"
}

// Start verifies the backend and starts the invalidation supervisor and the
// memory janitor. An unreachable backend is logged, not fatal: the cache is
// advisory.
func (m *PluginModule) Start(ctx context.Context) error {
	if err := m.service.Cache().Ping(ctx); err != nil {
		m.logger.Warn("cache backend unreachable; serving from the store",
			zap.String("backend", m.config.Backend),
			zap.Error(err))
	}
	m.service.Start()
	if err := m.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache janitor: %w", err)
	}
	ttl := m.service.Registry().TTLs()
	m.logger.Info("cache plugin started",
		zap.String("backend", m.config.Backend),
		zap.String("prefix", m.config.Prefix),
		zap.Duration("listing_ttl", ttl.Listing),
		zap.Duration("category_ttl", ttl.Category))
	return nil
}

// Stop stops background work and closes the backend.
func (m *PluginModule) Stop(ctx context.Context) error {
	if err := m.janitor.Stop(ctx); err != nil {
		m.logger.Warn("cache janitor did not stop in time", zap.Error(err))
	}
	if err := m.service.Stop(ctx); err != nil {
		m.logger.Warn("invalidation supervisor did not drain in time", zap.Error(err))
	}
	if err := m.service.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	m.logger.Info("cache plugin stopped")
	return nil
}

// SetContainer sets the service container for this plugin.
func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the cache service used by consumers.
func (m *PluginModule) Port() *Service {
	return m.service
}

// Health reports backend reachability along with the breaker state.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ttl := m.service.Registry().TTLs()
	details := map[string]any{
		"backend":      m.config.Backend,
		"prefix":       m.config.Prefix,
		"breaker":      m.service.Cache().BreakerState(),
		"listing_ttl":  ttl.Listing.String(),
		"category_ttl": ttl.Category.String(),
	}
	if err := m.service.Cache().Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("health check failed: %v", err),
			Details: details,
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
