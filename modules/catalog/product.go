package catalog

import (
	"context"
	"errors"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/identifier"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/search"
	"go.uber.org/zap"
)

// errNoRankedHits sends a text search to the substring fallback. Being an
// error keeps empty ranked pages out of the cache while the index catches up.
var errNoRankedHits = errors.New("no ranked search hits")

// CreateProduct validates req, allocates slug and product code, uploads
// the images and stores the product. Uploaded images are deleted when the
// store write fails.
func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest, images []media.File) (*domain.Product, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if err := checkProductImageCount(len(images)); err != nil {
		return nil, err
	}
	if err := s.checkProductCategories(ctx, &req.CategoryID, req.SubCategoryID); err != nil {
		return nil, err
	}
	if err := s.checkProductName(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	categoryID := req.CategoryID
	p := &domain.Product{
		ID:            s.newID(),
		Name:          req.Name,
		CategoryID:    &categoryID,
		SubCategoryID: req.SubCategoryID,
		Brand:         req.Brand,
		Description:   req.Description,
		Discount:      req.Discount,
		Status:        domain.StatusActive,
		IsFeatured:    req.IsFeatured,
		IsHotProduct:  req.IsHotProduct,
		IsBestSeller:  req.IsBestSeller,
		Tags:          nonNil(req.Tags),
		Additional:    domain.AdditionalInfo{ShelfLife: domain.DefaultShelfLife},
	}
	p.Variants = domain.BuildVariants(req.Variants, s.newID)
	if req.Status != "" {
		p.Status = req.Status
	}
	if req.Additional != nil {
		p.Additional = *req.Additional
		if p.Additional.ShelfLife == 0 {
			p.Additional.ShelfLife = domain.DefaultShelfLife
		}
	}

	urls, err := s.upload(ctx, images)
	if err != nil {
		return nil, err
	}
	p.Images = urls

	err = s.writeWithIdentifiers(ctx, "product",
		func(ctx context.Context) error { return s.assignProductIdentifiers(ctx, p) },
		func(ctx context.Context) error { return s.store.CreateProduct(ctx, p) })
	if err != nil {
		s.discardMedia(ctx, urls)
		return nil, err
	}

	s.indexProduct(p)
	s.invalidate(ctx, cache.ProductScope(p.Slug))
	s.logger.Info("product created",
		zap.String("id", p.ID),
		zap.String("slug", p.Slug),
		zap.String("code", p.ProductCode))
	return p, nil
}

// UpdateProduct applies a partial update. A name change regenerates slug
// and product code; a non-nil variant list replaces the variants.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (*domain.Product, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := p.Slug

	renamed := req.Name != nil && *req.Name != p.Name
	if renamed {
		if err := s.checkProductName(ctx, *req.Name, p.ID); err != nil {
			return nil, err
		}
		p.Name = *req.Name
	}
	if req.CategoryID != nil || req.SubCategoryID != nil {
		categoryID := p.CategoryID
		if req.CategoryID != nil {
			categoryID = req.CategoryID
		}
		subID := p.SubCategoryID
		if req.SubCategoryID != nil {
			subID = req.SubCategoryID
		}
		if categoryID == nil {
			return nil, domain.Validation("categoryId is required")
		}
		if err := s.checkProductCategories(ctx, categoryID, subID); err != nil {
			return nil, err
		}
		p.CategoryID, p.SubCategoryID = categoryID, subID
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Discount != nil {
		p.Discount = *req.Discount
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.IsHotProduct != nil {
		p.IsHotProduct = *req.IsHotProduct
	}
	if req.IsBestSeller != nil {
		p.IsBestSeller = *req.IsBestSeller
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	if req.Additional != nil {
		p.Additional = *req.Additional
		if p.Additional.ShelfLife == 0 {
			p.Additional.ShelfLife = domain.DefaultShelfLife
		}
	}
	replaceVariants := req.Variants != nil
	if replaceVariants {
		p.Variants = domain.BuildVariants(req.Variants, s.newID)
	}

	assign := func(context.Context) error { return nil }
	if renamed {
		assign = func(ctx context.Context) error { return s.assignProductIdentifiers(ctx, p) }
	}
	err = s.writeWithIdentifiers(ctx, "product", assign,
		func(ctx context.Context) error { return s.store.UpdateProduct(ctx, p, replaceVariants) })
	if err != nil {
		return nil, err
	}

	s.indexProduct(p)
	s.invalidate(ctx, cache.ProductScope(p.Slug, oldSlug))
	return p, nil
}

// ReplaceProductImages swaps all images of a product. The old images are
// deleted best-effort after the update commits.
func (s *Service) ReplaceProductImages(ctx context.Context, id string, images []media.File) (*domain.Product, error) {
	if err := checkProductImageCount(len(images)); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	urls, err := s.upload(ctx, images)
	if err != nil {
		return nil, err
	}
	oldImages := p.Images
	p.Images = urls
	if err := s.store.UpdateProduct(ctx, p, false); err != nil {
		s.discardMedia(ctx, urls)
		return nil, err
	}
	s.discardMedia(ctx, oldImages)

	s.indexProduct(p)
	s.invalidate(ctx, cache.ProductScope(p.Slug))
	return p, nil
}

// DeleteProduct removes a product with its variants, reviews and cart
// lines, then its images.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.discardMedia(ctx, p.Images)
	s.unindexProduct(id)
	s.invalidate(ctx, append(cache.ProductScope(p.Slug), cache.ProductReviews.Under(cache.IDSegment(id))))
	s.logger.Info("product deleted", zap.String("id", id), zap.String("slug", p.Slug))
	return nil
}

// GetProduct returns a product by id. Admin view, not cached.
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// GetProductBySlug returns a product by slug.
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	key := cache.ProductBySlug.Key(cache.IDSegment(slug))
	return resolve(ctx, s, key, func(ctx context.Context) (*domain.Product, error) {
		return s.store.GetProductBySlug(ctx, slug)
	})
}

// ListProducts returns one page of active products. A text search is
// answered from the ranked index; when that yields nothing the query is
// re-run as a substring match over name and tags under a separate key.
func (s *Service) ListProducts(ctx context.Context, q ProductListingQuery) (*domain.ProductPage, bool, error) {
	q = q.Normalize(s.maxLimit)
	r := s.cache.Resolver()

	if q.Search == "" {
		return cache.Resolve(ctx, r, q.Key(), func(ctx context.Context) (*domain.ProductPage, error) {
			return s.listProducts(ctx, q, false)
		})
	}

	page, hit, err := cache.Resolve(ctx, r, q.Key(), func(ctx context.Context) (*domain.ProductPage, error) {
		return s.searchProducts(ctx, q)
	})
	if !errors.Is(err, errNoRankedHits) {
		return page, hit, err
	}
	return cache.Resolve(ctx, r, q.FallbackKey(), func(ctx context.Context) (*domain.ProductPage, error) {
		return s.listProducts(ctx, q, true)
	})
}

func (s *Service) listProducts(ctx context.Context, q ProductListingQuery, substring bool) (*domain.ProductPage, error) {
	f := domain.ProductFilter{
		HotOnly:      q.Hot,
		BestOnly:     q.Best,
		FeaturedOnly: q.Featured,
		ActiveOnly:   true,
		Offset:       q.Offset(),
		Limit:        q.Limit,
	}
	if q.Category != "" {
		f.CategoryIDs = []string{q.Category}
	}
	if substring {
		f.Substring = q.Search
	}
	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return &domain.ProductPage{
		Products:   nonNil(products),
		Pagination: domain.NewPagination(total, q.Page, q.Limit),
	}, nil
}

func (s *Service) searchProducts(ctx context.Context, q ProductListingQuery) (*domain.ProductPage, error) {
	if s.search == nil {
		return nil, errNoRankedHits
	}
	sq := search.Query{
		Text:         q.Search,
		HotOnly:      q.Hot,
		BestOnly:     q.Best,
		FeaturedOnly: q.Featured,
		Offset:       q.Offset(),
		Limit:        q.Limit,
	}
	if q.Category != "" {
		sq.CategoryIDs = []string{q.Category}
	}
	res, err := s.search.Search(ctx, sq)
	if err != nil {
		s.logger.Warn("search index query failed; using substring match", zap.Error(err))
		return nil, errNoRankedHits
	}
	if res.Total == 0 {
		return nil, errNoRankedHits
	}

	byID, err := s.store.GetProductsByIDs(ctx, res.ProductIDs)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(res.ProductIDs))
	for _, id := range res.ProductIDs {
		if p, ok := byID[id]; ok {
			products = append(products, *p)
		}
	}
	return &domain.ProductPage{
		Products:   products,
		Pagination: domain.NewPagination(res.Total, q.Page, q.Limit),
	}, nil
}

// Suggestions returns lightweight matches for search-as-you-type. An empty
// term suggests nothing.
func (s *Service) Suggestions(ctx context.Context, q SuggestionQuery) ([]domain.Suggestion, error) {
	q = q.Normalize()
	if q.Search == "" {
		return []domain.Suggestion{}, nil
	}
	return resolve(ctx, s, q.Key(), func(ctx context.Context) ([]domain.Suggestion, error) {
		out, err := s.store.SuggestProducts(ctx, q.Search, q.Limit)
		return nonNil(out), err
	})
}

// CountProducts returns the total number of products.
func (s *Service) CountProducts(ctx context.Context) (int64, error) {
	return s.store.CountProducts(ctx)
}

// ReindexSearch rebuilds the search index from the store.
func (s *Service) ReindexSearch(ctx context.Context, syncer *search.Syncer) (int, error) {
	return syncer.Reindex(ctx, s.store)
}

func checkProductImageCount(n int) error {
	if n < 1 || n > domain.MaxProductImages {
		return domain.Validation("between 1 and %d images are required", domain.MaxProductImages)
	}
	return nil
}

// checkProductCategories requires a live category and, when given, a live
// sub-category of it.
func (s *Service) checkProductCategories(ctx context.Context, categoryID, subID *string) error {
	c, err := s.liveCategory(ctx, *categoryID)
	if err != nil {
		return err
	}
	if subID == nil || *subID == "" {
		return nil
	}
	sub, err := s.liveCategory(ctx, *subID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return domain.NotFound("sub-category")
		}
		return err
	}
	if sub.Type != domain.CategorySub || sub.ParentCategoryID == nil || *sub.ParentCategoryID != c.ID {
		return domain.Validation("subCategoryId must be a sub-category of categoryId")
	}
	return nil
}

func (s *Service) checkProductName(ctx context.Context, name, excludeID string) error {
	taken, err := s.store.ProductNameExists(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return domain.DuplicateIdentifier("name", nil)
	}
	return nil
}

func (s *Service) assignProductIdentifiers(ctx context.Context, p *domain.Product) error {
	base, err := identifier.Slug(p.Name)
	if err != nil {
		return err
	}
	slug, err := identifier.Allocate(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return s.store.ProductSlugExists(ctx, candidate, p.ID)
	})
	if err != nil {
		return err
	}
	codeBase, err := identifier.ProductCodeBase(p.Name)
	if err != nil {
		return err
	}
	code, err := identifier.AllocateCode(ctx, codeBase, func(ctx context.Context, candidate string) (bool, error) {
		return s.store.ProductCodeExists(ctx, candidate, p.ID)
	})
	if err != nil {
		return err
	}
	p.Slug, p.ProductCode = slug, code
	return nil
}
