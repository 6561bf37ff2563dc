// Package catalog implements the catalog use cases: category, product, cart
// and review operations over the store, fronted by the read-through cache.
package catalog

import (
	"context"
	"errors"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/search"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchIndex is the asynchronous product search index.
type SearchIndex interface {
	Upsert(p *domain.Product)
	Delete(productID string)
	Search(ctx context.Context, q search.Query) (search.Result, error)
}

// Recorder receives catalog metrics.
type Recorder interface {
	IdentifierCollision(entity string)
}

type nopRecorder struct{}

func (nopRecorder) IdentifierCollision(string) {}

// Actor is the authenticated caller of an owner-scoped operation.
type Actor struct {
	UserID string
	Admin  bool
}

// Options configures a Service.
type Options struct {
	// MaxLimit clamps listing page sizes.
	MaxLimit int
	Logger   *zap.Logger
	Recorder Recorder
	// Search is optional; without it text search uses substring matching.
	Search SearchIndex
}

// Service implements the catalog operations.
type Service struct {
	store    domain.CatalogStore
	cache    *cache.Service
	media    media.Storage
	search   SearchIndex
	logger   *zap.Logger
	recorder Recorder
	maxLimit int
	newID    func() string
}

// NewService creates a catalog service.
func NewService(store domain.CatalogStore, c *cache.Service, m media.Storage, opts Options) *Service {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Service{
		store:    store,
		cache:    c,
		media:    m,
		search:   opts.Search,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		maxLimit: opts.MaxLimit,
		newID:    uuid.NewString,
	}
}

// resolve reads key through the cache.
func resolve[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	v, _, err := cache.Resolve(ctx, s.cache.Resolver(), key, load)
	return v, err
}

// invalidate clears targets after a committed write. It never fails.
func (s *Service) invalidate(ctx context.Context, targets []cache.Target) {
	s.cache.Invalidate(ctx, targets...)
}

// writeWithIdentifiers assigns identifiers and runs write. A write that
// loses a unique-index race is retried once with freshly allocated
// identifiers.
func (s *Service) writeWithIdentifiers(ctx context.Context, entity string, assign, write func(context.Context) error) error {
	if err := assign(ctx); err != nil {
		return err
	}
	err := write(ctx)
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		return err
	}
	s.recorder.IdentifierCollision(entity)
	s.logger.Info("identifier taken concurrently; reallocating",
		zap.String("entity", entity),
		zap.Error(err))
	if err := assign(ctx); err != nil {
		return err
	}
	return write(ctx)
}

// upload stores files, rolling back the whole batch when one fails.
func (s *Service) upload(ctx context.Context, files []media.File) ([]string, error) {
	if s.media == nil {
		return nil, domain.Validation("media storage is not configured")
	}
	return media.UploadBatch(ctx, s.media, files)
}

// discardMedia deletes urls best-effort on a context detached from the
// request.
func (s *Service) discardMedia(ctx context.Context, urls []string) {
	if s.media == nil || len(urls) == 0 {
		return
	}
	media.DeleteAll(context.WithoutCancel(ctx), s.media, urls, s.logger)
}

func (s *Service) indexProduct(p *domain.Product) {
	if s.search != nil {
		s.search.Upsert(p)
	}
}

func (s *Service) unindexProduct(id string) {
	if s.search != nil {
		s.search.Delete(id)
	}
}
