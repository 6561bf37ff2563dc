package cache

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Tier groups namespaces that share a TTL.
type Tier int

const (
	TierListing Tier = iota
	TierCategory
)

// Namespace is a family of cache keys sharing a tag and a TTL tier.
type Namespace struct {
	Tag  string
	Tier Tier
}

// Registered namespaces.
var (
	CatalogMenu            = Namespace{Tag: "catalog-menu", Tier: TierCategory}
	CategoriesAll          = Namespace{Tag: "categories-all", Tier: TierCategory}
	CategoriesMain         = Namespace{Tag: "categories-main", Tier: TierCategory}
	CategoryDetail         = Namespace{Tag: "category-detail", Tier: TierCategory}
	CategorySubcategories  = Namespace{Tag: "category-subcategories", Tier: TierCategory}
	CategoryProducts       = Namespace{Tag: "category-products", Tier: TierListing}
	ProductsListing        = Namespace{Tag: "products-listing", Tier: TierListing}
	ProductsSearchFallback = Namespace{Tag: "products-search-fallback", Tier: TierListing}
	ProductBySlug          = Namespace{Tag: "product-by-slug", Tier: TierListing}
	ProductSuggestions     = Namespace{Tag: "product-suggestions", Tier: TierListing}
	ProductReviews         = Namespace{Tag: "product-reviews", Tier: TierListing}
)

// Namespaces lists every registered namespace.
var Namespaces = []Namespace{
	CatalogMenu, CategoriesAll, CategoriesMain, CategoryDetail, CategorySubcategories,
	CategoryProducts, ProductsListing, ProductsSearchFallback, ProductBySlug,
	ProductSuggestions, ProductReviews,
}

// None is the key segment rendered for an absent value.
const None = "none"

// Key joins the tag and the segments with ':'. Segments must already be
// normalized; see Segment.
func (n Namespace) Key(segments ...string) string {
	if len(segments) == 0 {
		return n.Tag
	}
	return n.Tag + ":" + strings.Join(segments, ":")
}

// All targets every key of the namespace.
func (n Namespace) All() Target {
	return Target{Value: n.Tag + ":", Namespace: n.Tag}
}

// Exact targets the single key built from segments.
func (n Namespace) Exact(segments ...string) Target {
	return Target{Value: n.Key(segments...), Exact: true, Namespace: n.Tag}
}

// Under targets every key whose leading segments equal segments.
func (n Namespace) Under(segments ...string) Target {
	return Target{Value: n.Key(segments...) + ":", Namespace: n.Tag}
}

// Segment renders a free-text value for a key: trimmed, lower-cased,
// whitespace collapsed and path-escaped so it cannot contain ':'. An empty
// value renders as None.
func Segment(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if s == "" {
		return None
	}
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

// IDSegment renders an identifier, None when empty.
func IDSegment(id string) string {
	if id == "" {
		return None
	}
	return url.PathEscape(id)
}

// FlagSegment renders a filter flag: "true" when set, None otherwise.
func FlagSegment(b bool) string {
	if b {
		return "true"
	}
	return None
}

// IntSegment renders an integer.
func IntSegment(i int) string {
	return strconv.Itoa(i)
}

// Target is one invalidation unit: an exact key or a key prefix.
type Target struct {
	Value     string
	Exact     bool
	Namespace string
}

// String implements fmt.Stringer.
func (t Target) String() string {
	if t.Exact {
		return t.Value
	}
	return t.Value + "*"
}

// TTLConfig holds the TTL of each tier.
type TTLConfig struct {
	Listing  time.Duration
	Category time.Duration
}

// DefaultTTLConfig returns the default tier TTLs.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{Listing: time.Hour, Category: 24 * time.Hour}
}

// Registry resolves namespaces and their TTLs.
type Registry struct {
	ttl  TTLConfig
	tags map[string]Namespace
}

// NewRegistry creates a registry. Every tier needs a positive TTL.
func NewRegistry(ttl TTLConfig) (*Registry, error) {
	if ttl.Listing <= 0 || ttl.Category <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive (listing=%s, category=%s)", ttl.Listing, ttl.Category)
	}
	tags := make(map[string]Namespace, len(Namespaces))
	for _, n := range Namespaces {
		tags[n.Tag] = n
	}
	return &Registry{ttl: ttl, tags: tags}, nil
}

// TTL returns the TTL of the namespace owning key. Unknown keys get the
// listing TTL.
func (r *Registry) TTL(key string) time.Duration {
	n, ok := r.tags[NamespaceOf(key)]
	if ok && n.Tier == TierCategory {
		return r.ttl.Category
	}
	return r.ttl.Listing
}

// TTLs returns the configured tier TTLs.
func (r *Registry) TTLs() TTLConfig {
	return r.ttl
}

// CategoryScope is cleared by category create and update.
func CategoryScope() []Target {
	return []Target{
		CategoriesAll.Exact(),
		CategoriesMain.Exact(),
		CatalogMenu.Exact(),
		CategoryDetail.All(),
		CategorySubcategories.All(),
		CategoryProducts.All(),
	}
}

// CategoryCascadeScope is cleared by category delete and restore, which also
// rewrite product references.
func CategoryCascadeScope() []Target {
	return append(CategoryScope(),
		ProductsListing.All(),
		ProductsSearchFallback.All(),
		ProductBySlug.All(),
		ProductSuggestions.All(),
	)
}

// ProductScope is cleared by product create, update and delete. slugs are
// the product's current and previous slugs.
func ProductScope(slugs ...string) []Target {
	targets := []Target{
		CatalogMenu.Exact(),
		ProductsListing.All(),
		ProductsSearchFallback.All(),
		ProductSuggestions.All(),
		CategoryProducts.All(),
		CategoryDetail.All(),
	}
	for _, s := range slugs {
		if s != "" {
			targets = append(targets, ProductBySlug.Exact(IDSegment(s)))
		}
	}
	return targets
}

// ReviewScope is cleared by review create, update and delete.
func ReviewScope(productID, slug string) []Target {
	targets := []Target{
		ProductReviews.Under(IDSegment(productID)),
		ProductsListing.All(),
		ProductsSearchFallback.All(),
		CategoryProducts.All(),
		CategoryDetail.All(),
	}
	if slug != "" {
		targets = append(targets, ProductBySlug.Exact(IDSegment(slug)))
	}
	return targets
}
