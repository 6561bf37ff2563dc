package catalog

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

func orderedVariants(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateProduct inserts a product together with its variants.
func (s *Store) CreateProduct(ctx context.Context, p *Product) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	if err := db.Create(p).Error; err != nil {
		return translate("create product", err)
	}
	p.Derive()
	return nil
}

// UpdateProduct saves the product row and, when replaceVariants is set,
// swaps the whole variant list in the same transaction. Rating and
// ReviewCount belong to the review writes: they are never written here and
// are reloaded into p.
func (s *Store) UpdateProduct(ctx context.Context, p *Product, replaceVariants bool) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Variants", "Rating", "ReviewCount").Save(p).Error; err != nil {
			return err
		}
		var agg struct {
			Rating      float64
			ReviewCount int
		}
		if err := tx.Model(&Product{}).Select("rating", "review_count").Where("id = ?", p.ID).Scan(&agg).Error; err != nil {
			return err
		}
		p.Rating, p.ReviewCount = agg.Rating, agg.ReviewCount
		if !replaceVariants {
			return nil
		}
		if err := tx.Where("product_id = ?", p.ID).Delete(&Variant{}).Error; err != nil {
			return err
		}
		for i := range p.Variants {
			p.Variants[i].ProductID = p.ID
		}
		if len(p.Variants) == 0 {
			return nil
		}
		return tx.Create(&p.Variants).Error
	})
	if err != nil {
		return translate("update product", err)
	}
	p.Derive()
	return nil
}

// DeleteProduct removes the product, its variants, its reviews and every
// cart line that points at it.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NotFound("product")
		}
		if err := tx.Where("product_id = ?", id).Delete(&Variant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&Review{}).Error; err != nil {
			return err
		}
		return tx.Where("product_id = ?", id).Delete(&CartItem{}).Error
	})
	return translate("delete product", err)
}

// GetProduct returns a product with its variants.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.getProduct(ctx, "id = ?", id)
}

// GetProductBySlug returns a product with its variants.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return s.getProduct(ctx, "slug = ?", slug)
}

func (s *Store) getProduct(ctx context.Context, where string, arg any) (*Product, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var p Product
	if err := db.Preload("Variants", orderedVariants).Where(where, arg).First(&p).Error; err != nil {
		return nil, notFoundOr("product", "get product", err)
	}
	p.Derive()
	return &p, nil
}

// GetProductsByIDs loads the given products keyed by id. Missing ids are
// absent from the map.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error) {
	out := make(map[string]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	db, cancel := s.conn(ctx)
	defer cancel()
	var products []Product
	if err := db.Preload("Variants", orderedVariants).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, translate("get products", err)
	}
	for i := range products {
		products[i].Derive()
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// ProductSlugExists reports whether another product owns slug.
func (s *Store) ProductSlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return s.exists(ctx, &Product{}, "slug = ?", slug, excludeID)
}

// ProductCodeExists reports whether another product owns code.
func (s *Store) ProductCodeExists(ctx context.Context, code, excludeID string) (bool, error) {
	return s.exists(ctx, &Product{}, "product_code = ?", code, excludeID)
}

// ProductNameExists reports whether another product is named name.
func (s *Store) ProductNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	return s.exists(ctx, &Product{}, "name = ?", name, excludeID)
}

func applyProductFilter(q *gorm.DB, f ProductFilter) *gorm.DB {
	if len(f.CategoryIDs) > 0 {
		q = q.Where("(category_id IN ? OR sub_category_id IN ?)", f.CategoryIDs, f.CategoryIDs)
	}
	if f.HotOnly {
		q = q.Where("is_hot_product = ?", true)
	}
	if f.BestOnly {
		q = q.Where("is_best_seller = ?", true)
	}
	if f.FeaturedOnly {
		q = q.Where("is_featured = ?", true)
	}
	if f.ActiveOnly {
		q = q.Where("status = ?", StatusActive)
	}
	if term := strings.TrimSpace(f.Substring); term != "" {
		pattern := likePattern(term)
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return q
}

// ListProducts returns one page of products matching f and the total match
// count.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := applyProductFilter(db.Model(&Product{}), f).Count(&total).Error; err != nil {
		return nil, 0, translate("count products", err)
	}

	var products []Product
	q := applyProductFilter(db.Model(&Product{}), f).
		Preload("Variants", orderedVariants).
		Order("created_at DESC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, translate("list products", err)
	}
	for i := range products {
		products[i].Derive()
	}
	return products, total, nil
}

// SuggestProducts is a case-insensitive substring match over name,
// description and tags.
func (s *Store) SuggestProducts(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	pattern := likePattern(term)
	var products []Product
	err := db.Select("id", "name", "slug", "description", "images").
		Where("status = ?", StatusActive).
		Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern).
		Order("created_at DESC").Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, translate("suggest products", err)
	}
	out := make([]Suggestion, 0, len(products))
	for _, p := range products {
		out = append(out, Suggestion{ID: p.ID, Name: p.Name, Slug: p.Slug, Description: p.Description, Images: p.Images})
	}
	return out, nil
}

// CountProducts returns the number of products.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var n int64
	err := db.Model(&Product{}).Count(&n).Error
	return n, translate("count products", err)
}

// EachProduct walks every product in batches. The per-call timeout does not
// apply; ctx bounds the walk.
func (s *Store) EachProduct(ctx context.Context, batchSize int, fn func([]Product) error) error {
	var batch []Product
	res := s.db.WithContext(ctx).Preload("Variants", orderedVariants).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				batch[i].Derive()
			}
			return fn(batch)
		})
	return translate("walk products", res.Error)
}
