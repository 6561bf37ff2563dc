package media

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"go.uber.org/zap"
)

// PluginModule provides media storage as a mono plugin module. It connects
// to the embedded NATS server on Start, so Port is only valid afterwards.
type PluginModule struct {
	container types.ServiceContainer
	config    Config
	logger    *zap.Logger
	store     *JetStreamStore
	service   *Service
}

// Compile-time interface checks.
var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the media plugin.
func NewPluginModule(cfg Config, logger *zap.Logger) *PluginModule {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PluginModule{config: cfg, logger: logger}
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "media"
}

// Start connects to NATS and opens the media bucket.
func (m *PluginModule) Start(ctx context.Context) error {
	store, err := NewJetStreamStore(m.config.NATSURL, m.config.Bucket)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return err
	}
	svc, err := NewService(store, m.config, m.logger)
	if err != nil {
		store.Close()
		return err
	}
	m.store = store
	m.service = svc
	m.logger.Info("media plugin started",
		zap.String("bucket", m.config.Bucket),
		zap.String("public_url", m.config.PublicURL))
	return nil
}

// Stop closes the NATS connection.
func (m *PluginModule) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	m.logger.Info("media plugin stopped")
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

// Port returns the media service, or nil before Start.
func (m *PluginModule) Port() *Service {
	return m.service
}

// Health reports the NATS connection state.
func (m *PluginModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"bucket": m.config.Bucket}
	if m.store == nil || !m.store.IsConnected() {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not connected",
			Details: details,
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
