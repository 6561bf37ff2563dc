package catalog

import (
	"context"

	"gorm.io/gorm"
)

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c *Category) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return translate("create category", db.Create(c).Error)
}

// UpdateCategory saves every field of c.
func (s *Store) UpdateCategory(ctx context.Context, c *Category) error {
	db, cancel := s.conn(ctx)
	defer cancel()
	return translate("update category", db.Save(c).Error)
}

// GetCategory returns a category by id, deleted or not.
func (s *Store) GetCategory(ctx context.Context, id string) (*Category, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var c Category
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFoundOr("category", "get category", err)
	}
	return &c, nil
}

// CategorySlugExists reports whether any category other than excludeID,
// deleted ones included, owns slug.
func (s *Store) CategorySlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return s.exists(ctx, &Category{}, "slug = ?", slug, excludeID)
}

// CategoryNameExists reports whether a live category other than excludeID is
// named name.
func (s *Store) CategoryNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	return s.exists(ctx, &Category{}, "name = ? AND is_deleted = ?", name, excludeID, false)
}

func (s *Store) exists(ctx context.Context, model any, where string, value any, excludeID string, extra ...any) (bool, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	args := append([]any{value}, extra...)
	q := db.Model(model).Where(where, args...)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, StoreUnavailable("check uniqueness", err)
	}
	return count > 0, nil
}

// ListCategories returns every category, deleted ones included.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var out []Category
	err := db.Order("display_order ASC").Order("created_at ASC").Find(&out).Error
	return out, translate("list categories", err)
}

// ListMainCategories returns live, active root categories.
func (s *Store) ListMainCategories(ctx context.Context) ([]Category, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var out []Category
	err := db.Where("parent_category_id IS NULL AND is_active = ? AND is_deleted = ?", true, false).
		Order("display_order ASC").Order("created_at ASC").
		Find(&out).Error
	return out, translate("list main categories", err)
}

// ListSubcategories returns the live children of parentID.
func (s *Store) ListSubcategories(ctx context.Context, parentID string) ([]Category, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var out []Category
	err := db.Where("parent_category_id = ? AND is_deleted = ?", parentID, false).
		Order("display_order ASC").Order("created_at ASC").
		Find(&out).Error
	return out, translate("list subcategories", err)
}

// CountLiveSubcategories counts the live children of parentID.
func (s *Store) CountLiveSubcategories(ctx context.Context, parentID string) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()
	var n int64
	err := db.Model(&Category{}).Where("parent_category_id = ? AND is_deleted = ?", parentID, false).Count(&n).Error
	return n, translate("count subcategories", err)
}

// SoftDeleteCategory marks the category and its live sub-categories deleted
// and detaches every product that referenced any of them, in one
// transaction. It returns the ids that were marked.
func (s *Store) SoftDeleteCategory(ctx context.Context, id string) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var ids []string
	err := db.Transaction(func(tx *gorm.DB) error {
		var c Category
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&c).Error; err != nil {
			return notFoundOr("category", "get category", err)
		}
		var subIDs []string
		if err := tx.Model(&Category{}).
			Where("parent_category_id = ? AND is_deleted = ?", id, false).
			Pluck("id", &subIDs).Error; err != nil {
			return err
		}
		ids = append([]string{id}, subIDs...)

		if err := tx.Model(&Category{}).Where("id IN ?", ids).
			Update("is_deleted", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&Product{}).Where("category_id IN ?", ids).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&Product{}).Where("sub_category_id IN ?", ids).
			Update("sub_category_id", nil).Error
	})
	if err != nil {
		return nil, translate("delete category", err)
	}
	return ids, nil
}

// RestoreCategory clears the deleted flag on the category and the
// sub-categories that point at it. Product references are not restored.
func (s *Store) RestoreCategory(ctx context.Context, id string) ([]string, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var ids []string
	err := db.Transaction(func(tx *gorm.DB) error {
		var c Category
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			return notFoundOr("category", "get category", err)
		}
		if !c.IsDeleted {
			return Validation("category is not deleted")
		}
		if c.ParentCategoryID != nil {
			var parent Category
			if err := tx.Where("id = ?", *c.ParentCategoryID).First(&parent).Error; err != nil {
				return notFoundOr("parent category", "get category", err)
			}
			if parent.IsDeleted {
				return Validation("parent category is deleted; restore it first")
			}
		}
		var subIDs []string
		if err := tx.Model(&Category{}).
			Where("parent_category_id = ? AND is_deleted = ?", id, true).
			Pluck("id", &subIDs).Error; err != nil {
			return err
		}
		ids = append([]string{id}, subIDs...)
		return tx.Model(&Category{}).Where("id IN ?", ids).Update("is_deleted", false).Error
	})
	if err != nil {
		return nil, translate("restore category", err)
	}
	return ids, nil
}
