package catalog

import (
	"context"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/identifier"
	"github.com/example/catalog-service/modules/media"
	"go.uber.org/zap"
)

// CreateCategory validates req, allocates the slug, uploads the two images
// and stores the category.
func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest, images []media.File) (*domain.Category, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if len(images) != domain.CategoryImageCount {
		return nil, domain.Validation("exactly %d images are required", domain.CategoryImageCount)
	}
	if req.Type == "" {
		req.Type = domain.CategoryMain
	}
	if err := s.checkParent(ctx, "", req.Type, req.ParentCategoryID); err != nil {
		return nil, err
	}
	if err := s.checkCategoryName(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	c := &domain.Category{
		ID:               s.newID(),
		Name:             req.Name,
		Description:      req.Description,
		ParentCategoryID: req.ParentCategoryID,
		Type:             req.Type,
		DisplayOrder:     req.DisplayOrder,
		IsActive:         true,
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if c.Type == domain.CategoryMain {
		c.ParentCategoryID = nil
	}

	urls, err := s.upload(ctx, images)
	if err != nil {
		return nil, err
	}
	c.Images = urls

	err = s.writeWithIdentifiers(ctx, "category",
		func(ctx context.Context) error { return s.assignCategorySlug(ctx, c) },
		func(ctx context.Context) error { return s.store.CreateCategory(ctx, c) })
	if err != nil {
		s.discardMedia(ctx, urls)
		return nil, err
	}

	s.invalidate(ctx, cache.CategoryScope())
	s.logger.Info("category created", zap.String("id", c.ID), zap.String("slug", c.Slug))
	return c, nil
}

// UpdateCategory applies a partial update. Non-empty images replace both
// images; the old ones are deleted after the update commits.
func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.UpdateCategoryRequest, images []media.File) (*domain.Category, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if len(images) != 0 && len(images) != domain.CategoryImageCount {
		return nil, domain.Validation("exactly %d images are required", domain.CategoryImageCount)
	}
	c, err := s.liveCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	renamed := req.Name != nil && *req.Name != c.Name
	if renamed {
		if err := s.checkCategoryName(ctx, *req.Name, c.ID); err != nil {
			return nil, err
		}
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Type != nil {
		c.Type = *req.Type
	}
	if req.ParentCategoryID != nil {
		c.ParentCategoryID = req.ParentCategoryID
	}
	if c.Type == domain.CategoryMain && req.ParentCategoryID == nil {
		c.ParentCategoryID = nil
	}
	if err := s.checkParent(ctx, c.ID, c.Type, c.ParentCategoryID); err != nil {
		return nil, err
	}
	if c.Type == domain.CategorySub {
		n, err := s.store.CountLiveSubcategories(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, domain.Validation("a category with sub-categories cannot become a sub-category")
		}
	}
	if req.DisplayOrder != nil {
		c.DisplayOrder = *req.DisplayOrder
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	oldImages := c.Images
	var newImages []string
	if len(images) > 0 {
		if newImages, err = s.upload(ctx, images); err != nil {
			return nil, err
		}
		c.Images = newImages
	}

	assign := func(context.Context) error { return nil }
	if renamed {
		assign = func(ctx context.Context) error { return s.assignCategorySlug(ctx, c) }
	}
	err = s.writeWithIdentifiers(ctx, "category", assign,
		func(ctx context.Context) error { return s.store.UpdateCategory(ctx, c) })
	if err != nil {
		s.discardMedia(ctx, newImages)
		return nil, err
	}
	if len(newImages) > 0 {
		s.discardMedia(ctx, oldImages)
	}

	s.invalidate(ctx, cache.CategoryScope())
	return c, nil
}

// DeleteCategory soft-deletes a category and its sub-categories and detaches
// their products. It returns the ids marked deleted.
func (s *Service) DeleteCategory(ctx context.Context, id string) ([]string, error) {
	ids, err := s.store.SoftDeleteCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.CategoryCascadeScope())
	s.logger.Info("category deleted", zap.String("id", id), zap.Strings("cascade", ids))
	return ids, nil
}

// RestoreCategory clears the deleted flag of a category and its
// sub-categories. It returns the ids restored.
func (s *Service) RestoreCategory(ctx context.Context, id string) ([]string, error) {
	ids, err := s.store.RestoreCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.CategoryCascadeScope())
	s.logger.Info("category restored", zap.String("id", id), zap.Strings("ids", ids))
	return ids, nil
}

// GetCategory returns a category by id, deleted or not. Admin view, not
// cached.
func (s *Service) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// ListCategories returns every category including deleted ones.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return resolve(ctx, s, cache.CategoriesAll.Key(), func(ctx context.Context) ([]domain.Category, error) {
		return s.store.ListCategories(ctx)
	})
}

// MainCategories returns the live, active root categories in display
// order.
func (s *Service) MainCategories(ctx context.Context) ([]domain.Category, error) {
	return resolve(ctx, s, cache.CategoriesMain.Key(), func(ctx context.Context) ([]domain.Category, error) {
		return s.store.ListMainCategories(ctx)
	})
}

// Subcategories returns the live children of a live category.
func (s *Service) Subcategories(ctx context.Context, parentID string) ([]domain.Category, error) {
	key := cache.CategorySubcategories.Key(cache.IDSegment(parentID))
	return resolve(ctx, s, key, func(ctx context.Context) ([]domain.Category, error) {
		if _, err := s.liveCategory(ctx, parentID); err != nil {
			return nil, err
		}
		return s.store.ListSubcategories(ctx, parentID)
	})
}

// CategoryDetails returns a live category with its sub-categories and the
// active products filed under any of them.
func (s *Service) CategoryDetails(ctx context.Context, id string) (*domain.CategoryDetails, error) {
	key := cache.CategoryDetail.Key(cache.IDSegment(id))
	return resolve(ctx, s, key, func(ctx context.Context) (*domain.CategoryDetails, error) {
		c, err := s.liveCategory(ctx, id)
		if err != nil {
			return nil, err
		}
		subs, err := s.store.ListSubcategories(ctx, id)
		if err != nil {
			return nil, err
		}
		products, _, err := s.store.ListProducts(ctx, domain.ProductFilter{
			CategoryIDs: familyIDs(c.ID, subs),
			ActiveOnly:  true,
			Limit:       s.maxLimit,
		})
		if err != nil {
			return nil, err
		}
		return &domain.CategoryDetails{
			ID:            c.ID,
			Name:          c.Name,
			Slug:          c.Slug,
			Subcategories: nonNil(subs),
			Products:      nonNil(products),
		}, nil
	})
}

// CategoryProducts returns one page of the active products of a live
// category and its sub-categories.
func (s *Service) CategoryProducts(ctx context.Context, q CategoryProductsQuery) (*domain.ProductPage, error) {
	q = q.Normalize(s.maxLimit)
	return resolve(ctx, s, q.Key(), func(ctx context.Context) (*domain.ProductPage, error) {
		c, err := s.liveCategory(ctx, q.CategoryID)
		if err != nil {
			return nil, err
		}
		subs, err := s.store.ListSubcategories(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		products, total, err := s.store.ListProducts(ctx, domain.ProductFilter{
			CategoryIDs: familyIDs(c.ID, subs),
			ActiveOnly:  true,
			Offset:      q.Offset(),
			Limit:       q.Limit,
		})
		if err != nil {
			return nil, err
		}
		return &domain.ProductPage{
			Products:   nonNil(products),
			Pagination: domain.NewPagination(total, q.Page, q.Limit),
		}, nil
	})
}

// Menu returns the live main categories with their live sub-categories.
func (s *Service) Menu(ctx context.Context) ([]domain.MenuEntry, error) {
	return resolve(ctx, s, cache.CatalogMenu.Key(), func(ctx context.Context) ([]domain.MenuEntry, error) {
		mains, err := s.store.ListMainCategories(ctx)
		if err != nil {
			return nil, err
		}
		menu := make([]domain.MenuEntry, 0, len(mains))
		for _, c := range mains {
			subs, err := s.store.ListSubcategories(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			menu = append(menu, domain.MenuEntry{Category: c, Subcategories: nonNil(subs)})
		}
		return menu, nil
	})
}

func (s *Service) liveCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted {
		return nil, domain.NotFound("category")
	}
	return c, nil
}

// checkParent enforces the one-level hierarchy: a Sub category needs a live
// Main parent other than itself, a Main category has none.
func (s *Service) checkParent(ctx context.Context, selfID string, typ domain.CategoryType, parentID *string) error {
	if typ == domain.CategoryMain {
		if parentID != nil && *parentID != "" {
			return domain.Validation("a main category cannot have a parent")
		}
		return nil
	}
	if parentID == nil || *parentID == "" {
		return domain.Validation("a sub-category requires parentCategoryId")
	}
	if *parentID == selfID {
		return domain.Validation("a category cannot be its own parent")
	}
	parent, err := s.store.GetCategory(ctx, *parentID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return domain.NotFound("parent category")
		}
		return err
	}
	if parent.IsDeleted {
		return domain.NotFound("parent category")
	}
	if parent.Type != domain.CategoryMain {
		return domain.Validation("parent category must be a main category")
	}
	return nil
}

func (s *Service) checkCategoryName(ctx context.Context, name, excludeID string) error {
	taken, err := s.store.CategoryNameExists(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return domain.DuplicateIdentifier("name", nil)
	}
	return nil
}

func (s *Service) assignCategorySlug(ctx context.Context, c *domain.Category) error {
	base, err := identifier.Slug(c.Name)
	if err != nil {
		return err
	}
	slug, err := identifier.Allocate(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		return s.store.CategorySlugExists(ctx, candidate, c.ID)
	})
	if err != nil {
		return err
	}
	c.Slug = slug
	return nil
}

func familyIDs(id string, subs []domain.Category) []string {
	ids := make([]string, 0, len(subs)+1)
	ids = append(ids, id)
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	return ids
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
