// Package catalog provides the catalog entities, the error taxonomy and the
// gorm-backed CatalogStore.
package catalog

import (
	"time"
)

// CategoryType distinguishes root categories from their children.
type CategoryType string

const (
	CategoryMain CategoryType = "Main"
	CategorySub  CategoryType = "Sub"
)

// Category is a node in the one-level category hierarchy.
type Category struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	Name             string       `gorm:"size:255;not null;uniqueIndex:idx_categories_live_name,where:is_deleted = false" json:"name"`
	Slug             string       `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Description      string       `gorm:"size:2000" json:"description"`
	ParentCategoryID *string      `gorm:"size:36;index" json:"parentCategoryId"`
	Type             CategoryType `gorm:"size:8;not null;default:Main" json:"type"`
	DisplayOrder     int          `gorm:"not null;default:0" json:"displayOrder"`
	Images           []string     `gorm:"type:text;serializer:json" json:"images"`
	IsActive         bool         `gorm:"not null" json:"isActive"`
	IsDeleted        bool         `gorm:"not null;default:false;index" json:"isDeleted"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// CategoryImageCount is the exact number of images a category carries.
const CategoryImageCount = 2

// CreateCategoryRequest is the input for creating a category.
type CreateCategoryRequest struct {
	Name             string       `json:"name" validate:"required,min=2,max=255"`
	Description      string       `json:"description" validate:"max=2000"`
	ParentCategoryID *string      `json:"parentCategoryId,omitempty" validate:"omitempty,uuid"`
	Type             CategoryType `json:"type" validate:"omitempty,oneof=Main Sub"`
	DisplayOrder     int          `json:"displayOrder" validate:"gte=0"`
	IsActive         *bool        `json:"isActive,omitempty"`
}

// UpdateCategoryRequest is a partial update; nil fields are left unchanged.
type UpdateCategoryRequest struct {
	Name             *string       `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Description      *string       `json:"description,omitempty" validate:"omitempty,max=2000"`
	ParentCategoryID *string       `json:"parentCategoryId,omitempty" validate:"omitempty,uuid"`
	Type             *CategoryType `json:"type,omitempty" validate:"omitempty,oneof=Main Sub"`
	DisplayOrder     *int          `json:"displayOrder,omitempty" validate:"omitempty,gte=0"`
	IsActive         *bool         `json:"isActive,omitempty"`
}

// CategoryDetails is a category with its live sub-categories and the active
// products filed under either.
type CategoryDetails struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Subcategories []Category `json:"subcategories"`
	Products      []Product  `json:"products"`
}

// MenuEntry is one main category of the catalog menu.
type MenuEntry struct {
	Category      Category   `json:"category"`
	Subcategories []Category `json:"subcategories"`
}
