package api

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/example/catalog-service/modules/media"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MediaReader serves stored media objects.
type MediaReader interface {
	Open(ctx context.Context, name string) ([]byte, string, error)
}

// HealthChecker is a module that reports its health.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// Handlers provides HTTP handlers for the API.
type Handlers struct {
	catalog     *catalog.Service
	cache       *cache.Service
	media       MediaReader
	checks      map[string]HealthChecker
	maxFileSize int64
	logger      *zap.Logger
}

// HandlerDeps are the services behind the handlers. Media and Checks may
// be nil.
type HandlerDeps struct {
	Catalog     *catalog.Service
	Cache       *cache.Service
	Media       MediaReader
	Checks      map[string]HealthChecker
	MaxFileSize int64
	Logger      *zap.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(deps HandlerDeps) *Handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxFileSize <= 0 {
		deps.MaxFileSize = media.DefaultMaxFileSize
	}
	return &Handlers{
		catalog:     deps.Catalog,
		cache:       deps.Cache,
		media:       deps.Media,
		checks:      deps.Checks,
		maxFileSize: deps.MaxFileSize,
		logger:      deps.Logger,
	}
}

// decodeForm fills dst from the request. Multipart requests carry the JSON
// payload in the "data" field and the files in "images"; any other request
// is parsed as a plain body without files.
func (h *Handlers) decodeForm(c *fiber.Ctx, dst any) ([]media.File, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(dst); err != nil {
			return nil, errBadBody
		}
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, errBadBody
	}
	if values := form.Value["data"]; len(values) > 0 && strings.TrimSpace(values[0]) != "" {
		if err := c.App().Config().JSONDecoder([]byte(values[0]), dst); err != nil {
			return nil, errBadBody
		}
	}
	return h.readFiles(form.File["images"])
}

// imagesOnly reads the image files of a multipart request.
func (h *Handlers) imagesOnly(c *fiber.Ctx) ([]media.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "A multipart form with images is required")
	}
	return h.readFiles(form.File["images"])
}

func (h *Handlers) readFiles(headers []*multipart.FileHeader) ([]media.File, error) {
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileSize {
			return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "File "+fh.Filename+" exceeds the upload limit")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to read file data")
		}
		data, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
		_ = f.Close()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to read file data")
		}
		if int64(len(data)) > h.maxFileSize {
			return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "File "+fh.Filename+" exceeds the upload limit")
		}
		files = append(files, media.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}
	return files, nil
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "healthy", Modules: map[string]ModuleHealth{}}
	for name, check := range h.checks {
		st := check.Health(c.UserContext())
		resp.Modules[name] = ModuleHealth{Healthy: st.Healthy, Message: st.Message, Details: st.Details}
		if !st.Healthy {
			resp.Status = "unhealthy"
		}
	}
	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// GetMedia handles GET /media/:name.
func (h *Handlers) GetMedia(c *fiber.Ctx) error {
	if h.media == nil {
		return fiber.NewError(fiber.StatusNotFound, "Media storage is not configured")
	}
	data, contentType, err := h.media.Open(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(data)
}

// CacheStats handles GET /api/v1/admin/cache/stats.
func (h *Handlers) CacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"stats": h.cache.Stats()})
}

// FlushCache handles POST /api/v1/admin/cache/flush.
func (h *Handlers) FlushCache(c *fiber.Ctx) error {
	n, err := h.cache.Flush(c.UserContext())
	if err != nil {
		h.logger.Error("cache flush failed", zap.Error(err))
		return fiber.NewError(fiber.StatusServiceUnavailable, "Cache flush failed")
	}
	h.logger.Info("cache flushed", zap.Int64("deleted", n))
	return c.JSON(FlushResponse{Message: "Cache flushed", Deleted: n})
}

// ResetCacheStats handles POST /api/v1/admin/cache/stats/reset.
func (h *Handlers) ResetCacheStats(c *fiber.Ctx) error {
	h.cache.ResetStats()
	return c.JSON(MessageResponse{Message: "Cache statistics reset"})
}
