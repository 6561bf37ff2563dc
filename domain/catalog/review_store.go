package catalog

import (
	"context"

	"gorm.io/gorm"
)

// CreateReview inserts a review and refreshes the product aggregate.
func (s *Store) CreateReview(ctx context.Context, r *Review) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return refreshRating(tx, r.ProductID)
	})
	return translate("create review", err)
}

// UpdateReview saves a review and refreshes the product aggregate.
func (s *Store) UpdateReview(ctx context.Context, r *Review) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(r).Error; err != nil {
			return err
		}
		return refreshRating(tx, r.ProductID)
	})
	return translate("update review", err)
}

// DeleteReview removes a review and refreshes the product aggregate.
func (s *Store) DeleteReview(ctx context.Context, id string) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	err := db.Transaction(func(tx *gorm.DB) error {
		var r Review
		if err := tx.Where("id = ?", id).First(&r).Error; err != nil {
			return notFoundOr("review", "get review", err)
		}
		if err := tx.Delete(&r).Error; err != nil {
			return err
		}
		return refreshRating(tx, r.ProductID)
	})
	return translate("delete review", err)
}

// refreshRating recomputes rating and reviewCount from the review rows.
func refreshRating(tx *gorm.DB, productID string) error {
	var agg struct {
		Count int64
		Sum   int64
	}
	if err := tx.Model(&Review{}).Where("product_id = ?", productID).
		Select("COUNT(*) AS count, COALESCE(SUM(rating), 0) AS sum").
		Scan(&agg).Error; err != nil {
		return err
	}
	return tx.Model(&Product{}).Where("id = ?", productID).Updates(map[string]any{
		"rating":       AverageRating(agg.Sum, agg.Count),
		"review_count": agg.Count,
	}).Error
}

// GetReview returns a review by id.
func (s *Store) GetReview(ctx context.Context, id string) (*Review, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var r Review
	if err := db.Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFoundOr("review", "get review", err)
	}
	return &r, nil
}

// ReviewExists reports whether the user already reviewed the product.
func (s *Store) ReviewExists(ctx context.Context, productID, userID string) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var n int64
	err := db.Model(&Review{}).Where("product_id = ? AND user_id = ?", productID, userID).Count(&n).Error
	if err != nil {
		return false, StoreUnavailable("check review", err)
	}
	return n > 0, nil
}

// ListReviews returns one page of a product's reviews, newest first.
func (s *Store) ListReviews(ctx context.Context, productID string, offset, limit int) ([]Review, int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&Review{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return nil, 0, translate("count reviews", err)
	}
	var reviews []Review
	err := db.Where("product_id = ?", productID).
		Order("created_at DESC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, translate("list reviews", err)
	}
	return reviews, total, nil
}
