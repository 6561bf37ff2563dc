package catalog

import (
	"math"
	"time"
)

// ProductStatus is the publication state of a product.
type ProductStatus string

const (
	StatusActive   ProductStatus = "Active"
	StatusInactive ProductStatus = "Inactive"
)

const (
	MaxProductImages = 5
	MaxProductTags   = 10
	DefaultPackaging = "Bottle"
	DefaultShelfLife = 12
)

// Product is a sellable catalog item.
type Product struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Name          string         `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Slug          string         `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	CategoryID    *string        `gorm:"size:36;index" json:"categoryId"`
	SubCategoryID *string        `gorm:"size:36;index" json:"subCategoryId"`
	Brand         string         `gorm:"size:255" json:"brand"`
	Description   string         `gorm:"size:5000" json:"description"`
	ProductCode   string         `gorm:"size:32;not null;uniqueIndex" json:"productCode"`
	Variants      []Variant      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
	Images        []string       `gorm:"type:text;serializer:json" json:"images"`
	Discount      float64        `gorm:"not null;default:0" json:"discount"`
	Rating        float64        `gorm:"not null;default:0" json:"rating"`
	ReviewCount   int            `gorm:"not null;default:0" json:"reviewCount"`
	Status        ProductStatus  `gorm:"size:16;not null;default:Active;index" json:"status"`
	IsFeatured    bool           `gorm:"not null;default:false" json:"isFeatured"`
	IsHotProduct  bool           `gorm:"not null;default:false" json:"isHotProduct"`
	IsBestSeller  bool           `gorm:"not null;default:false" json:"isBestSeller"`
	Tags          []string       `gorm:"type:text;serializer:json" json:"tags"`
	Additional    AdditionalInfo `gorm:"type:text;serializer:json" json:"additionalInfo"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Variant is one priced size/color option of a product.
type Variant struct {
	ID                 string  `gorm:"primaryKey;size:36" json:"id"`
	ProductID          string  `gorm:"size:36;not null;index" json:"-"`
	Position           int     `gorm:"not null;default:0" json:"-"`
	Size               string  `gorm:"size:64" json:"size"`
	Color              string  `gorm:"size:64" json:"color"`
	Price              float64 `gorm:"not null" json:"price"`
	StockQty           int     `gorm:"not null;default:0" json:"stockQty"`
	Packaging          string  `gorm:"size:64" json:"packaging"`
	PriceAfterDiscount float64 `gorm:"-" json:"priceAfterDiscount"`
}

// AdditionalInfo is free-form product metadata.
type AdditionalInfo struct {
	SkinType          string `json:"skinType,omitempty"`
	ShelfLife         int    `json:"shelfLife"`
	UsageInstructions string `json:"usageInstructions,omitempty"`
}

// PriceAfterDiscount applies a percentage discount, rounded to cents.
func PriceAfterDiscount(price, discount float64) float64 {
	return math.Round(price*(1-discount/100)*100) / 100
}

// Derive fills the computed variant prices. It is called on every load.
func (p *Product) Derive() {
	for i := range p.Variants {
		p.Variants[i].PriceAfterDiscount = PriceAfterDiscount(p.Variants[i].Price, p.Discount)
	}
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// VariantInput describes a variant in create and update requests.
type VariantInput struct {
	Size      string  `json:"size" validate:"max=64"`
	Color     string  `json:"color" validate:"max=64"`
	Price     float64 `json:"price" validate:"gt=0"`
	StockQty  int     `json:"stockQty" validate:"gte=0"`
	Packaging string  `json:"packaging" validate:"max=64"`
}

// CreateProductRequest is the input for creating a product.
type CreateProductRequest struct {
	Name          string          `json:"name" validate:"required,min=3,max=255"`
	CategoryID    string          `json:"categoryId" validate:"required,uuid"`
	SubCategoryID *string         `json:"subCategoryId,omitempty" validate:"omitempty,uuid"`
	Brand         string          `json:"brand" validate:"max=255"`
	Description   string          `json:"description" validate:"required,min=10,max=5000"`
	Variants      []VariantInput  `json:"variants" validate:"required,min=1,dive"`
	Discount      float64         `json:"discount" validate:"gte=0,lte=100"`
	Status        ProductStatus   `json:"status" validate:"omitempty,oneof=Active Inactive"`
	IsFeatured    bool            `json:"isFeatured"`
	IsHotProduct  bool            `json:"isHotProduct"`
	IsBestSeller  bool            `json:"isBestSeller"`
	Tags          []string        `json:"tags" validate:"max=10,dive,max=64"`
	Additional    *AdditionalInfo `json:"additionalInfo,omitempty"`
}

// UpdateProductRequest is a partial update; nil fields are left unchanged.
// A non-nil Variants replaces the whole variant list.
type UpdateProductRequest struct {
	Name          *string         `json:"name,omitempty" validate:"omitempty,min=3,max=255"`
	CategoryID    *string         `json:"categoryId,omitempty" validate:"omitempty,uuid"`
	SubCategoryID *string         `json:"subCategoryId,omitempty" validate:"omitempty,uuid"`
	Brand         *string         `json:"brand,omitempty" validate:"omitempty,max=255"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,min=10,max=5000"`
	Variants      []VariantInput  `json:"variants,omitempty" validate:"omitempty,min=1,dive"`
	Discount      *float64        `json:"discount,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status        *ProductStatus  `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	IsFeatured    *bool           `json:"isFeatured,omitempty"`
	IsHotProduct  *bool           `json:"isHotProduct,omitempty"`
	IsBestSeller  *bool           `json:"isBestSeller,omitempty"`
	Tags          []string        `json:"tags,omitempty" validate:"omitempty,max=10,dive,max=64"`
	Additional    *AdditionalInfo `json:"additionalInfo,omitempty"`
}

// BuildVariants converts request inputs into ordered variants with defaults.
func BuildVariants(inputs []VariantInput, newID func() string) []Variant {
	variants := make([]Variant, 0, len(inputs))
	for i, in := range inputs {
		packaging := in.Packaging
		if packaging == "" {
			packaging = DefaultPackaging
		}
		variants = append(variants, Variant{
			ID:        newID(),
			Position:  i,
			Size:      in.Size,
			Color:     in.Color,
			Price:     in.Price,
			StockQty:  in.StockQty,
			Packaging: packaging,
		})
	}
	return variants
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Limit      int   `json:"limit"`
}

// NewPagination computes page metadata for total rows.
func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, Page: page, TotalPages: pages, Limit: limit}
}

// ProductPage is a paginated product listing.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// Suggestion is a lightweight search-as-you-type result.
type Suggestion struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}
