package catalog

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/search"
	"github.com/go-monolith/mono"
	"go.uber.org/zap"
)

// ModuleConfig holds catalog module configuration.
type ModuleConfig struct {
	DB       domain.DBConfig
	MaxLimit int
	Search   search.SyncerConfig
	// ReindexTimeout bounds the startup rebuild of the search index.
	ReindexTimeout time.Duration
}

// Metrics is what the module reports to.
type Metrics interface {
	Recorder
	search.Observer
}

// Module provides the catalog service as a mono module. It receives the
// cache and media plugins through SetPlugin.
type Module struct {
	config  ModuleConfig
	logger  *zap.Logger
	metrics Metrics

	cache       *cache.Service
	mediaPlugin *media.PluginModule
	store       *domain.Store
	syncer      *search.Syncer
	service     *Service
	stopReindex context.CancelFunc
	reindexDone chan struct{}
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
)

// NewModule creates the catalog module. metrics may be nil.
func NewModule(cfg ModuleConfig, logger *zap.Logger, metrics Metrics) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReindexTimeout <= 0 {
		cfg.ReindexTimeout = 5 * time.Minute
	}
	return &Module{config: cfg, logger: logger, metrics: metrics}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "catalog"
}

// SetPlugin receives plugin instances from the mono framework.
// This is called before Start() to inject plugin dependencies.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	switch alias {
	case "cache":
		if p, ok := plugin.(*cache.PluginModule); ok {
			m.cache = p.Port()
			m.logger.Debug("cache plugin injected")
		}
	case "media":
		if p, ok := plugin.(*media.PluginModule); ok {
			m.mediaPlugin = p
			m.logger.Debug("media plugin injected")
		}
	}
}

// Start opens the store, starts the search syncer and rebuilds the index in
// the background.
func (m *Module) Start(ctx context.Context) error {
	if m.cache == nil {
		return fmt.Errorf("cache plugin not set - ensure 'cache' plugin is registered")
	}
	var storage media.Storage
	if m.mediaPlugin != nil && m.mediaPlugin.Port() != nil {
		storage = m.mediaPlugin.Port()
	} else {
		m.logger.Warn("media plugin not available; image uploads are disabled")
	}

	db, err := domain.Open(m.config.DB)
	if err != nil {
		return err
	}
	if err := domain.Migrate(db); err != nil {
		return err
	}
	m.store = domain.NewStore(db, m.config.DB.Timeout)

	index, err := search.NewGormIndex(db)
	if err != nil {
		return err
	}
	var observer search.Observer
	var recorder Recorder
	if m.metrics != nil {
		observer, recorder = m.metrics, m.metrics
	}
	m.syncer = search.NewSyncer(m.config.Search, index, m.logger.Named("search"), observer)
	if err := m.syncer.Start(ctx); err != nil {
		return err
	}

	m.service = NewService(m.store, m.cache, storage, Options{
		MaxLimit: m.config.MaxLimit,
		Logger:   m.logger,
		Recorder: recorder,
		Search:   m.syncer,
	})

	reindexCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.ReindexTimeout)
	m.stopReindex = cancel
	m.reindexDone = make(chan struct{})
	go func() {
		defer close(m.reindexDone)
		defer cancel()
		if _, err := m.service.ReindexSearch(reindexCtx, m.syncer); err != nil {
			m.logger.Warn("search index rebuild failed; text search falls back to substring matching", zap.Error(err))
		}
	}()

	m.logger.Info("catalog module started",
		zap.String("driver", m.config.DB.Driver),
		zap.Int("max_limit", m.service.maxLimit))
	return nil
}

// Stop drains the search syncer and closes the database.
func (m *Module) Stop(ctx context.Context) error {
	if m.stopReindex != nil {
		m.stopReindex()
		select {
		case <-m.reindexDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.syncer != nil {
		if err := m.syncer.Stop(ctx); err != nil {
			m.logger.Warn("search syncer did not drain in time", zap.Error(err))
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	m.logger.Info("catalog module stopped")
	return nil
}

// Port returns the catalog service, or nil before Start.
func (m *Module) Port() *Service {
	return m.service
}

// Health reports database reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	details := map[string]any{"driver": m.config.DB.Driver}
	if m.syncer != nil {
		details["search_pending"] = m.syncer.Pending()
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
			Details: details,
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
