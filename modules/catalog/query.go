package catalog

import (
	"strings"

	"github.com/example/catalog-service/modules/cache"
)

// Paging defaults.
const (
	DefaultLimit           = 12
	DefaultMaxLimit        = 100
	MaxReviewLimit         = 50
	DefaultSuggestionLimit = 5
	MaxSuggestionLimit     = 20
)

// normalizeText trims, lower-cases and collapses whitespace so the store
// query and the cache key see the same term.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizePage(page, limit, def, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func offset(page, limit int) int {
	return (page - 1) * limit
}

// ProductListingQuery selects one page of the public product listing.
type ProductListingQuery struct {
	Search   string
	Category string
	Hot      bool
	Best     bool
	Featured bool
	Page     int
	Limit    int
}

// Normalize returns the canonical form of q with limits clamped to
// maxLimit.
func (q ProductListingQuery) Normalize(maxLimit int) ProductListingQuery {
	q.Search = normalizeText(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	q.Page, q.Limit = normalizePage(q.Page, q.Limit, DefaultLimit, maxLimit)
	return q
}

func (q ProductListingQuery) segments() []string {
	return []string{
		cache.Segment(q.Search),
		cache.IDSegment(q.Category),
		cache.FlagSegment(q.Hot),
		cache.FlagSegment(q.Best),
		cache.FlagSegment(q.Featured),
		cache.IntSegment(q.Page),
		cache.IntSegment(q.Limit),
	}
}

// Key is the products-listing key of a normalized query.
func (q ProductListingQuery) Key() string {
	return cache.ProductsListing.Key(q.segments()...)
}

// FallbackKey is the products-search-fallback key of a normalized query.
func (q ProductListingQuery) FallbackKey() string {
	return cache.ProductsSearchFallback.Key(q.segments()...)
}

// Offset returns the row offset of the page.
func (q ProductListingQuery) Offset() int {
	return offset(q.Page, q.Limit)
}

// CategoryProductsQuery selects one page of a category's products.
type CategoryProductsQuery struct {
	CategoryID string
	Page       int
	Limit      int
}

// Normalize returns the canonical form of q.
func (q CategoryProductsQuery) Normalize(maxLimit int) CategoryProductsQuery {
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	q.Page, q.Limit = normalizePage(q.Page, q.Limit, DefaultLimit, maxLimit)
	return q
}

// Key is the category-products key of a normalized query.
func (q CategoryProductsQuery) Key() string {
	return cache.CategoryProducts.Key(cache.IDSegment(q.CategoryID), cache.IntSegment(q.Page), cache.IntSegment(q.Limit))
}

// Offset returns the row offset of the page.
func (q CategoryProductsQuery) Offset() int {
	return offset(q.Page, q.Limit)
}

// SuggestionQuery is a search-as-you-type request.
type SuggestionQuery struct {
	Search string
	Limit  int
}

// Normalize returns the canonical form of q.
func (q SuggestionQuery) Normalize() SuggestionQuery {
	q.Search = normalizeText(q.Search)
	_, q.Limit = normalizePage(1, q.Limit, DefaultSuggestionLimit, MaxSuggestionLimit)
	return q
}

// Key is the product-suggestions key of a normalized query.
func (q SuggestionQuery) Key() string {
	return cache.ProductSuggestions.Key(cache.Segment(q.Search), cache.IntSegment(q.Limit))
}

// ReviewListQuery selects one page of a product's reviews.
type ReviewListQuery struct {
	ProductID string
	Page      int
	Limit     int
}

// Normalize returns the canonical form of q.
func (q ReviewListQuery) Normalize() ReviewListQuery {
	q.ProductID = strings.TrimSpace(q.ProductID)
	q.Page, q.Limit = normalizePage(q.Page, q.Limit, DefaultLimit, MaxReviewLimit)
	return q
}

// Key is the product-reviews key of a normalized query.
func (q ReviewListQuery) Key() string {
	return cache.ProductReviews.Key(cache.IDSegment(q.ProductID), cache.IntSegment(q.Page), cache.IntSegment(q.Limit))
}

// Offset returns the row offset of the page.
func (q ReviewListQuery) Offset() int {
	return offset(q.Page, q.Limit)
}
