package catalog

import "context"

// CategoryStore persists categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	CategorySlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	CategoryNameExists(ctx context.Context, name, excludeID string) (bool, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListMainCategories(ctx context.Context) ([]Category, error)
	ListSubcategories(ctx context.Context, parentID string) ([]Category, error)
	CountLiveSubcategories(ctx context.Context, parentID string) (int64, error)
	SoftDeleteCategory(ctx context.Context, id string) ([]string, error)
	RestoreCategory(ctx context.Context, id string) ([]string, error)
}

// ProductStore persists products and their variants.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product, replaceVariants bool) error
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
	ProductSlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	ProductCodeExists(ctx context.Context, code, excludeID string) (bool, error)
	ProductNameExists(ctx context.Context, name, excludeID string) (bool, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	SuggestProducts(ctx context.Context, term string, limit int) ([]Suggestion, error)
	CountProducts(ctx context.Context) (int64, error)
	EachProduct(ctx context.Context, batchSize int, fn func([]Product) error) error
}

// CartStore persists carts.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	AddCartItem(ctx context.Context, userID string, item CartItem, maxQty int) (*Cart, error)
	SetCartItemQuantity(ctx context.Context, userID, productID, variantID string, qty, maxQty int) (*Cart, error)
	RemoveCartItem(ctx context.Context, userID, productID, variantID string) (*Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// ReviewStore persists reviews and maintains the product rating aggregate.
type ReviewStore interface {
	CreateReview(ctx context.Context, r *Review) error
	UpdateReview(ctx context.Context, r *Review) error
	DeleteReview(ctx context.Context, id string) error
	GetReview(ctx context.Context, id string) (*Review, error)
	ReviewExists(ctx context.Context, productID, userID string) (bool, error)
	ListReviews(ctx context.Context, productID string, offset, limit int) ([]Review, int64, error)
}

// CatalogStore is the full source-of-truth contract.
type CatalogStore interface {
	CategoryStore
	ProductStore
	CartStore
	ReviewStore
}

var _ CatalogStore = (*Store)(nil)

// ProductFilter selects and pages products. Results are ordered by
// creation time, newest first.
type ProductFilter struct {
	// CategoryIDs matches products whose category or sub-category is any of
	// the given ids.
	CategoryIDs  []string
	HotOnly      bool
	BestOnly     bool
	FeaturedOnly bool
	ActiveOnly   bool
	// Substring is a case-insensitive match over name and tags.
	Substring string
	Offset    int
	Limit     int
}
