// Package api exposes the catalog over HTTP with Fiber.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/example/catalog-service/modules/media"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Config holds API module configuration.
type Config struct {
	Port int
	// BodyLimit caps request bodies, multipart uploads included.
	BodyLimit   int
	MaxFileSize int64
}

// Metrics is the collector behind /metrics.
type Metrics interface {
	HTTPObserver
	Handler() http.Handler
}

// Module provides the HTTP API.
type Module struct {
	config  Config
	tokens  TokenValidator
	metrics Metrics
	logger  *zap.Logger

	app           *fiber.App
	catalogModule *catalog.Module
	cachePlugin   *cache.PluginModule
	mediaPlugin   *media.PluginModule
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
)

// NewModule creates a new API module. metrics may be nil.
func NewModule(cfg Config, tokens TokenValidator, metrics Metrics, logger *zap.Logger) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 32 * 1024 * 1024
	}
	return &Module{config: cfg, tokens: tokens, metrics: metrics, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetCatalogModule sets the catalog module dependency. It must be
// registered before the api module so it is started first.
func (m *Module) SetCatalogModule(cm *catalog.Module) {
	m.catalogModule = cm
}

// SetPlugin receives the cache and media plugins.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	switch alias {
	case "cache":
		if p, ok := plugin.(*cache.PluginModule); ok {
			m.cachePlugin = p
		}
	case "media":
		if p, ok := plugin.(*media.PluginModule); ok {
			m.mediaPlugin = p
		}
	}
}

// Start initializes the Fiber app and starts the HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.catalogModule == nil {
		return fmt.Errorf("catalog module not set")
	}
	service := m.catalogModule.Port()
	if service == nil {
		return fmt.Errorf("catalog service not available")
	}
	if m.cachePlugin == nil || m.cachePlugin.Port() == nil {
		return fmt.Errorf("cache plugin not set - ensure 'cache' plugin is registered")
	}

	deps := HandlerDeps{
		Catalog:     service,
		Cache:       m.cachePlugin.Port(),
		MaxFileSize: m.config.MaxFileSize,
		Logger:      m.logger,
		Checks: map[string]HealthChecker{
			"catalog": m.catalogModule,
			"cache":   m.cachePlugin,
		},
	}
	if m.mediaPlugin != nil {
		deps.Checks["media"] = m.mediaPlugin
		if svc := m.mediaPlugin.Port(); svc != nil {
			deps.Media = svc
		}
	}

	m.app = NewApp(NewHandlers(deps), m.tokens, m.metrics, m.config.BodyLimit, m.logger)

	go func() {
		addr := fmt.Sprintf(":%d", m.config.Port)
		if err := m.app.Listen(addr); err != nil {
			m.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	m.logger.Info("HTTP server started", zap.Int("port", m.config.Port))
	return nil
}

// Stop stops the HTTP server gracefully.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port": m.config.Port,
		},
	}
}

// NewApp builds the Fiber app with middleware and routes.
func NewApp(h *Handlers, tokens TokenValidator, metrics Metrics, bodyLimit int, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "catalog-service",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())
	if metrics != nil {
		app.Use(MetricsMiddleware(metrics))
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	}

	app.Get("/health", h.HealthCheck)
	app.Get("/media/:name", h.GetMedia)

	v1 := app.Group("/api/v1")

	categories := v1.Group("/categories")
	categories.Get("/", h.MainCategories)
	categories.Get("/menu", h.Menu)
	categories.Get("/:id", h.CategoryDetails)
	categories.Get("/:id/subcategories", h.Subcategories)
	categories.Get("/:id/products", h.CategoryProducts)

	products := v1.Group("/products")
	products.Get("/", h.ListProducts)
	products.Get("/suggestions", h.Suggestions)
	products.Get("/slug/:slug", h.GetProductBySlug)
	products.Get("/:id/reviews", h.ListReviews)
	products.Post("/:id/reviews", AuthMiddleware(tokens), h.CreateReview)

	reviews := v1.Group("/reviews", AuthMiddleware(tokens))
	reviews.Put("/:id", h.UpdateReview)
	reviews.Delete("/:id", h.DeleteReview)

	cart := v1.Group("/cart", AuthMiddleware(tokens))
	cart.Get("/", h.GetCart)
	cart.Delete("/", h.ClearCart)
	cart.Post("/items", h.AddToCart)
	cart.Put("/items", h.UpdateCartItem)
	cart.Delete("/items", h.RemoveCartItem)

	admin := v1.Group("/admin", AuthMiddleware(tokens), RequireAdmin())
	admin.Get("/categories", h.ListAllCategories)
	admin.Get("/categories/:id", h.GetCategory)
	admin.Post("/categories", h.CreateCategory)
	admin.Put("/categories/:id", h.UpdateCategory)
	admin.Delete("/categories/:id", h.DeleteCategory)
	admin.Post("/categories/:id/restore", h.RestoreCategory)

	admin.Get("/products/count", h.CountProducts)
	admin.Get("/products/:id", h.GetProduct)
	admin.Post("/products", h.CreateProduct)
	admin.Put("/products/:id", h.UpdateProduct)
	admin.Put("/products/:id/images", h.ReplaceProductImages)
	admin.Delete("/products/:id", h.DeleteProduct)

	admin.Get("/cache/stats", h.CacheStats)
	admin.Post("/cache/stats/reset", h.ResetCacheStats)
	admin.Post("/cache/flush", h.FlushCache)

	return app
}
