package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	mu      sync.Mutex
	objects map[string]bool
	uploads int
	failOn  int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: map[string]bool{}}
}

func (m *fakeMedia) Upload(_ context.Context, f media.File) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.failOn > 0 && m.uploads == m.failOn {
		return "", errors.New("bucket unavailable")
	}
	url := fmt.Sprintf("https://cdn.test/media/%d-%s", m.uploads, f.Name)
	m.objects[url] = true
	return url, nil
}

func (m *fakeMedia) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

func (m *fakeMedia) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// syncIndex applies index updates inline so tests observe them at once.
type syncIndex struct {
	index *search.GormIndex
}

func (s syncIndex) Upsert(p *domain.Product) {
	_ = s.index.Upsert(context.Background(), search.NewDocument(p))
}

func (s syncIndex) Delete(id string) {
	_ = s.index.Delete(context.Background(), id)
}

func (s syncIndex) Search(ctx context.Context, q search.Query) (search.Result, error) {
	return s.index.Search(ctx, q)
}

type collisions struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *collisions) IdentifierCollision(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n[entity]++
}

type fixture struct {
	svc        *Service
	store      *domain.Store
	cached     *cache.MemoryStore
	media      *fakeMedia
	collisions *collisions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := domain.Open(domain.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=on&_busy_timeout=5000",
	})
	require.NoError(t, err)
	require.NoError(t, domain.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := domain.NewStore(db, 5*time.Second)
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.NewGormIndex(db)
	require.NoError(t, err)

	cached := cache.NewMemoryStore()
	cfg := cache.DefaultConfig()
	cfg.Backend = "memory"
	cs, err := cache.NewService(cached, cfg, nil, nil)
	require.NoError(t, err)
	cs.Start()
	t.Cleanup(func() { _ = cs.Stop(context.Background()) })

	f := &fixture{
		store:      store,
		cached:     cached,
		media:      newFakeMedia(),
		collisions: &collisions{n: map[string]int{}},
	}
	f.svc = NewService(store, cs, f.media, Options{
		Recorder: f.collisions,
		Search:   syncIndex{index: index},
	})
	return f
}

func (f *fixture) cachedKey(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := f.cached.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func images(n int) []media.File {
	files := make([]media.File, n)
	for i := range files {
		files[i] = media.File{Name: fmt.Sprintf("img%d.png", i), ContentType: "image/png", Data: []byte("png")}
	}
	return files
}

func (f *fixture) createCategory(t *testing.T, name string, parentID *string) *domain.Category {
	t.Helper()
	req := domain.CreateCategoryRequest{Name: name}
	if parentID != nil {
		req.Type = domain.CategorySub
		req.ParentCategoryID = parentID
	}
	c, err := f.svc.CreateCategory(context.Background(), req, images(2))
	require.NoError(t, err)
	return c
}

func (f *fixture) createProduct(t *testing.T, name, categoryID string, subID *string) *domain.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), domain.CreateProductRequest{
		Name:          name,
		CategoryID:    categoryID,
		SubCategoryID: subID,
		Description:   "A gentle everyday formula.",
		Variants: []domain.VariantInput{
			{Size: "100ml", Price: 20, StockQty: 5},
			{Size: "200ml", Price: 35, StockQty: 1},
		},
		Tags: []string{"care"},
	}, images(1))
	require.NoError(t, err)
	return p
}

func TestQueryNormalization(t *testing.T) {
	q := ProductListingQuery{Search: "  Shampoo ", Limit: 1000}.Normalize(DefaultMaxLimit)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, "products-listing:shampoo:none:none:none:none:1:100", q.Key())
	assert.Equal(t, "products-search-fallback:shampoo:none:none:none:none:1:100", q.FallbackKey())

	q = ProductListingQuery{Search: "Rose  Serum", Category: "c1", Hot: true, Page: 2}.Normalize(DefaultMaxLimit)
	assert.Equal(t, "products-listing:rose%20serum:c1:true:none:none:2:12", q.Key())
	assert.Equal(t, 12, q.Offset())

	s := SuggestionQuery{Search: "ROSE", Limit: 50}.Normalize()
	assert.Equal(t, "product-suggestions:rose:20", s.Key())
	assert.Equal(t, 5, SuggestionQuery{}.Normalize().Limit)

	r := ReviewListQuery{ProductID: "p1", Page: -3, Limit: 80}.Normalize()
	assert.Equal(t, "product-reviews:p1:1:50", r.Key())

	c := CategoryProductsQuery{CategoryID: "c1", Page: 3, Limit: 5}.Normalize(DefaultMaxLimit)
	assert.Equal(t, "category-products:c1:3:5", c.Key())
	assert.Equal(t, 10, c.Offset())
}

func TestListProducts_CachedUntilProductMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hair := f.createCategory(t, "Hair", nil)
	p := f.createProduct(t, "Argan Shampoo", hair.ID, nil)
	f.createProduct(t, "Clay Mask", hair.ID, nil)

	key := "products-listing:shampoo:none:none:none:none:1:12"
	q := ProductListingQuery{Search: "Shampoo"}

	page, fromCache, err := f.svc.ListProducts(ctx, q)
	require.NoError(t, err)
	assert.False(t, fromCache)
	require.Len(t, page.Products, 1)
	assert.Equal(t, p.ID, page.Products[0].ID)
	assert.True(t, f.cachedKey(t, key))

	page, fromCache, err = f.svc.ListProducts(ctx, q)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, "Argan Shampoo", page.Products[0].Name)

	discount := 10.0
	_, err = f.svc.UpdateProduct(ctx, p.ID, domain.UpdateProductRequest{Discount: &discount})
	require.NoError(t, err)
	assert.False(t, f.cachedKey(t, key))

	page, fromCache, err = f.svc.ListProducts(ctx, q)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 18.0, page.Products[0].Variants[0].PriceAfterDiscount)
}

func TestListProducts_ClampsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hair := f.createCategory(t, "Hair", nil)
	f.createProduct(t, "Argan Shampoo", hair.ID, nil)

	page, _, err := f.svc.ListProducts(ctx, ProductListingQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.Limit)
	assert.True(t, f.cachedKey(t, "products-listing:none:none:none:none:none:1:100"))
	assert.False(t, f.cachedKey(t, "products-listing:none:none:none:none:none:1:1000"))
}

func TestListProducts_SearchFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hair := f.createCategory(t, "Hair", nil)
	f.createProduct(t, "Argan Shampoo", hair.ID, nil)

	// The index matches term prefixes only; an infix needs the fallback.
	q := ProductListingQuery{Search: "rgan"}
	page, _, err := f.svc.ListProducts(ctx, q)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)

	q = q.Normalize(DefaultMaxLimit)
	assert.False(t, f.cachedKey(t, q.Key()), "empty ranked results are not cached")
	assert.True(t, f.cachedKey(t, q.FallbackKey()))
}

func TestCategorySlug_ReusesNameAfterSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createCategory(t, "Hair Care", nil)
	assert.Equal(t, "hair-care", first.Slug)

	_, err := f.svc.DeleteCategory(ctx, first.ID)
	require.NoError(t, err)

	second := f.createCategory(t, "Hair Care", nil)
	assert.Equal(t, "hair-care-1", second.Slug)

	_, err = f.svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Hair Care"}, images(2))
	assert.Equal(t, domain.KindDuplicateIdentifier, domain.KindOf(err))
}

func TestProductCode_Allocation(t *testing.T) {
	f := newFixture(t)
	face := f.createCategory(t, "Face", nil)

	first := f.createProduct(t, "Rose Serum", face.ID, nil)
	assert.Equal(t, "ROSESERUM-001", first.ProductCode)
	assert.Equal(t, "rose-serum", first.Slug)

	second := f.createProduct(t, "Rose-Serum!", face.ID, nil)
	assert.Equal(t, "ROSESERUM-002", second.ProductCode)
	assert.Equal(t, "rose-serum-1", second.Slug)
}

func TestCreateCategory_ConcurrentSameSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	names := []string{"Face Care", "Face-Care", "face care", "FACE CARE!", "Face_Care"}

	var wg sync.WaitGroup
	results := make([]*domain.Category, len(names))
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: name}, images(2))
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	created := 0
	for i := range names {
		if errs[i] != nil {
			assert.Equal(t, domain.KindDuplicateIdentifier, domain.KindOf(errs[i]), errs[i])
			continue
		}
		created++
		assert.False(t, seen[results[i].Slug], "duplicate slug %s", results[i].Slug)
		seen[results[i].Slug] = true
	}
	assert.Positive(t, created)

	all, err := f.store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, created)
}

func TestDeleteCategory_Cascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	main := f.createCategory(t, "Body", nil)
	sub := f.createCategory(t, "Body Lotion", &main.ID)
	direct := f.createProduct(t, "Shea Butter", main.ID, nil)
	nested := f.createProduct(t, "Cocoa Lotion", main.ID, &sub.ID)

	menu, err := f.svc.Menu(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	require.Len(t, menu[0].Subcategories, 1)
	mains, err := f.svc.MainCategories(ctx)
	require.NoError(t, err)
	require.Len(t, mains, 1)
	_, err = f.svc.GetProductBySlug(ctx, direct.Slug)
	require.NoError(t, err)

	ids, err := f.svc.DeleteCategory(ctx, main.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{main.ID, sub.ID}, ids)

	for _, key := range []string{"catalog-menu", "categories-main", "product-by-slug:" + direct.Slug} {
		assert.False(t, f.cachedKey(t, key), key)
	}

	mains, err = f.svc.MainCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, mains)

	for _, id := range []string{direct.ID, nested.ID} {
		p, err := f.svc.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p.CategoryID)
		assert.Nil(t, p.SubCategoryID)
	}

	_, err = f.svc.CategoryDetails(ctx, main.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = f.svc.RestoreCategory(ctx, main.ID)
	require.NoError(t, err)
	mains, err = f.svc.MainCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, mains, 1)
}

func TestCategoryHierarchyRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	main := f.createCategory(t, "Hair", nil)
	sub := f.createCategory(t, "Hair Oil", &main.ID)

	_, err := f.svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Orphan", Type: domain.CategorySub}, images(2))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.CreateCategory(ctx, domain.CreateCategoryRequest{
		Name: "Too Deep", Type: domain.CategorySub, ParentCategoryID: &sub.ID,
	}, images(2))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	subType := domain.CategorySub
	_, err = f.svc.UpdateCategory(ctx, main.ID, domain.UpdateCategoryRequest{Type: &subType, ParentCategoryID: &main.ID}, nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "One Image"}, images(1))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	details, err := f.svc.CategoryDetails(ctx, main.ID)
	require.NoError(t, err)
	assert.Len(t, details.Subcategories, 1)
}

func TestUpdateCategory_RenameInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Hair", nil)

	_, err := f.svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.True(t, f.cachedKey(t, "categories-all"))

	name := "Hair Care"
	updated, err := f.svc.UpdateCategory(ctx, c.ID, domain.UpdateCategoryRequest{Name: &name}, images(2))
	require.NoError(t, err)
	assert.Equal(t, "hair-care", updated.Slug)
	assert.False(t, f.cachedKey(t, "categories-all"))
	assert.Equal(t, 2, f.media.stored(), "old images replaced")
}

func TestCreateProduct_RollsBackMediaOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	before := f.media.stored()

	f.svc.store = failingCreates{CatalogStore: f.store}
	_, err := f.svc.CreateProduct(ctx, domain.CreateProductRequest{
		Name:        "Rose Serum",
		CategoryID:  c.ID,
		Description: "A gentle everyday formula.",
		Variants:    []domain.VariantInput{{Price: 10}},
	}, images(3))
	assert.Equal(t, domain.KindStoreUnavailable, domain.KindOf(err))
	assert.Equal(t, before, f.media.stored())
}

func TestCreateProduct_RollsBackBatchOnUploadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	before := f.media.stored()
	f.media.failOn = f.media.uploads + 2

	_, err := f.svc.CreateProduct(ctx, domain.CreateProductRequest{
		Name:        "Rose Serum",
		CategoryID:  c.ID,
		Description: "A gentle everyday formula.",
		Variants:    []domain.VariantInput{{Price: 10}},
	}, images(3))
	require.Error(t, err)
	assert.Equal(t, before, f.media.stored())
}

type failingCreates struct {
	domain.CatalogStore
}

func (failingCreates) CreateProduct(context.Context, *domain.Product) error {
	return domain.StoreUnavailable("create product", errors.New("connection reset"))
}

func TestGetProductBySlug_MatchesStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	p := f.createProduct(t, "Rose Serum", c.ID, nil)

	miss, err := f.svc.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)
	hit, err := f.svc.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)
	direct, err := f.store.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)

	want, _ := json.Marshal(direct)
	got, _ := json.Marshal(hit)
	assert.JSONEq(t, string(want), string(got))
	got, _ = json.Marshal(miss)
	assert.JSONEq(t, string(want), string(got))

	_, err = f.svc.GetProductBySlug(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, f.cachedKey(t, "product-by-slug:missing"))
}

func TestProductRename_InvalidatesOldSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	p := f.createProduct(t, "Rose Serum", c.ID, nil)

	_, err := f.svc.GetProductBySlug(ctx, "rose-serum")
	require.NoError(t, err)

	name := "Rose Night Serum"
	updated, err := f.svc.UpdateProduct(ctx, p.ID, domain.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "rose-night-serum", updated.Slug)
	assert.Equal(t, "ROSENIGHTS-001", updated.ProductCode)
	assert.False(t, f.cachedKey(t, "product-by-slug:rose-serum"))

	_, err = f.svc.GetProductBySlug(ctx, "rose-serum")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	p := f.createProduct(t, "Rose Serum", c.ID, nil)
	before := f.media.stored()

	require.NoError(t, f.svc.DeleteProduct(ctx, p.ID))
	assert.Equal(t, before-1, f.media.stored())

	page, _, err := f.svc.ListProducts(ctx, ProductListingQuery{Search: "rose"})
	require.NoError(t, err)
	assert.Empty(t, page.Products)

	assert.Equal(t, domain.KindNotFound, domain.KindOf(f.svc.DeleteProduct(ctx, p.ID)))
}

func TestSuggestionsAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	f.createProduct(t, "Rose Serum", c.ID, nil)
	f.createProduct(t, "Rose Water", c.ID, nil)
	f.createProduct(t, "Clay Mask", c.ID, nil)

	out, err := f.svc.Suggestions(ctx, SuggestionQuery{Search: " ROSE "})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.True(t, f.cachedKey(t, "product-suggestions:rose:5"))

	out, err = f.svc.Suggestions(ctx, SuggestionQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)

	n, err := f.svc.CountProducts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCartOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	p := f.createProduct(t, "Rose Serum", c.ID, nil)
	small := p.Variants[0]

	view, err := f.svc.AddToCart(ctx, "user-1", domain.AddCartItemRequest{ProductID: p.ID, VariantID: small.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
	assert.Equal(t, 20.0, view.TotalPrice)

	view, err = f.svc.AddToCart(ctx, "user-1", domain.AddCartItemRequest{ProductID: p.ID, VariantID: small.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)

	_, err = f.svc.AddToCart(ctx, "user-1", domain.AddCartItemRequest{ProductID: p.ID, VariantID: small.ID, Quantity: 3})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err), "stock exceeded")

	view, err = f.svc.UpdateCartItem(ctx, "user-1", domain.UpdateCartItemRequest{ProductID: p.ID, VariantID: small.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 100.0, view.TotalPrice)

	inactive := domain.StatusInactive
	_, err = f.svc.UpdateProduct(ctx, p.ID, domain.UpdateProductRequest{Status: &inactive})
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, "user-1", domain.AddCartItemRequest{ProductID: p.ID, VariantID: p.Variants[1].ID})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err), "inactive product")

	view, err = f.svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, view.Lines[0].Available)

	view, err = f.svc.RemoveCartItem(ctx, "user-1", domain.RemoveCartItemRequest{ProductID: p.ID, VariantID: small.ID})
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	require.NoError(t, f.svc.ClearCart(ctx, "user-1"))
}

func TestReviewOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCategory(t, "Face", nil)
	p := f.createProduct(t, "Rose Serum", c.ID, nil)
	alice := Actor{UserID: "alice"}
	bob := Actor{UserID: "bob"}
	admin := Actor{UserID: "ops", Admin: true}

	r, err := f.svc.CreateReview(ctx, alice, p.ID, domain.CreateReviewRequest{Rating: 5, Comment: "Lovely texture and scent."})
	require.NoError(t, err)
	_, err = f.svc.CreateReview(ctx, alice, p.ID, domain.CreateReviewRequest{Rating: 4, Comment: "Second thoughts on it."})
	assert.Equal(t, domain.KindDuplicateIdentifier, domain.KindOf(err))

	page, err := f.svc.ListReviews(ctx, ReviewListQuery{ProductID: p.ID})
	require.NoError(t, err)
	assert.Len(t, page.Reviews, 1)
	assert.True(t, f.cachedKey(t, "product-reviews:"+p.ID+":1:12"))

	rating := 3
	_, err = f.svc.UpdateReview(ctx, bob, r.ID, domain.UpdateReviewRequest{Rating: &rating})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	_, err = f.svc.UpdateReview(ctx, alice, r.ID, domain.UpdateReviewRequest{Rating: &rating})
	require.NoError(t, err)
	assert.False(t, f.cachedKey(t, "product-reviews:"+p.ID+":1:12"))

	got, err := f.svc.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Rating)

	assert.Equal(t, domain.KindForbidden, domain.KindOf(f.svc.DeleteReview(ctx, bob, r.ID)))
	require.NoError(t, f.svc.DeleteReview(ctx, admin, r.ID))

	got, err = f.svc.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Zero(t, got.ReviewCount)
}
