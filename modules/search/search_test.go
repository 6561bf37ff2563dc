package search

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/catalog-service/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestIndex(t *testing.T) *GormIndex {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "search.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	idx, err := NewGormIndex(db)
	require.NoError(t, err)
	return idx
}

func product(id, name, description string, tags []string, created time.Time) *catalog.Product {
	return &catalog.Product{
		ID:          id,
		Name:        name,
		Description: description,
		Tags:        tags,
		Status:      catalog.StatusActive,
		CreatedAt:   created,
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"rose", "serum", "20ml"}, Tokenize("Rose-serum, ROSE a 20ml!"))
	assert.Empty(t, Tokenize("  ! "))
}

func TestGormIndex_Ranking(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	docs := []Document{
		NewDocument(product("p1", "Argan Shampoo", "gentle hair wash", nil, base)),
		NewDocument(product("p2", "Hair Oil", "pairs with any shampoo", nil, base.Add(time.Hour))),
		NewDocument(product("p3", "Face Wash", "daily cleanser", []string{"shampoo-free"}, base.Add(2*time.Hour))),
		NewDocument(product("p4", "Clay Mask", "deep clean", nil, base)),
	}
	require.NoError(t, idx.Upsert(ctx, docs...))

	res, err := idx.Search(ctx, Query{Text: "Shampoo", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, []string{"p1", "p3", "p2"}, res.ProductIDs, "name beats tags beats body")

	res, err = idx.Search(ctx, Query{Text: "shampoo", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, res.ProductIDs)

	res, err = idx.Search(ctx, Query{Text: "nothing-matches", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.ProductIDs)
}

func TestGormIndex_FiltersAndDelete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	cat := "c1"

	hot := product("p1", "Rose Serum", "glow serum", nil, time.Now())
	hot.IsHotProduct = true
	hot.CategoryID = &cat
	inactive := product("p2", "Rose Water", "toner", nil, time.Now())
	inactive.Status = catalog.StatusInactive
	plain := product("p3", "Rose Balm", "lip balm", nil, time.Now())

	require.NoError(t, idx.Upsert(ctx, NewDocument(hot), NewDocument(inactive), NewDocument(plain)))

	res, err := idx.Search(ctx, Query{Text: "rose", Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p3"}, res.ProductIDs)

	res, err = idx.Search(ctx, Query{Text: "rose", HotOnly: true, CategoryIDs: []string{cat}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, res.ProductIDs)

	plain.Name = "Lip Balm"
	require.NoError(t, idx.Upsert(ctx, NewDocument(plain)))
	require.NoError(t, idx.Delete(ctx, "p1"))

	res, err = idx.Search(ctx, Query{Text: "rose", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.ProductIDs)
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) SearchIndexed(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		op += ":error"
	}
	o.ops = append(o.ops, op)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ops)
}

type sliceSource []catalog.Product

func (s sliceSource) EachProduct(_ context.Context, batchSize int, fn func([]catalog.Product) error) error {
	for start := 0; start < len(s); start += batchSize {
		end := min(start+batchSize, len(s))
		if err := fn(s[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func TestSyncer_AsyncUpdates(t *testing.T) {
	idx := newTestIndex(t)
	obs := &recordingObserver{}
	s := NewSyncer(SyncerConfig{NumWorkers: 1, QueueSize: 16, ProcessTimeout: time.Second}, idx, nil, obs)
	require.NoError(t, s.Start(context.Background()))

	s.Upsert(product("p1", "Rose Serum", "glow", nil, time.Now()))
	s.Upsert(product("p2", "Clay Mask", "clean", nil, time.Now()))
	s.Delete("p2")

	require.Eventually(t, func() bool { return obs.count() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	res, err := s.Search(context.Background(), Query{Text: "rose", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, res.ProductIDs)
}

func TestSyncer_QueueFullDrops(t *testing.T) {
	obs := &recordingObserver{}
	s := NewSyncer(SyncerConfig{NumWorkers: 1, QueueSize: 1}, newTestIndex(t), nil, obs)

	s.Delete("a")
	s.Delete("b")

	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, []string{"delete:error"}, obs.ops)
}

func TestSyncer_Reindex(t *testing.T) {
	idx := newTestIndex(t)
	obs := &recordingObserver{}
	s := NewSyncer(SyncerConfig{BatchSize: 2}, idx, nil, obs)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, NewDocument(product("stale", "Rose Stale", "old", nil, time.Now()))))

	source := sliceSource{
		*product("p1", "Rose Serum", "glow", nil, time.Now()),
		*product("p2", "Rose Water", "toner", nil, time.Now()),
		*product("p3", "Clay Mask", "clean", nil, time.Now()),
	}
	n, err := s.Reindex(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := idx.Search(ctx, Query{Text: "rose", Limit: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, res.ProductIDs)

	failing := func(context.Context, int, func([]catalog.Product) error) error { return errors.New("db down") }
	_, err = s.Reindex(ctx, sourceFunc(failing))
	assert.Error(t, err)
	assert.Contains(t, obs.ops, "reindex:error")
}

type sourceFunc func(context.Context, int, func([]catalog.Product) error) error

func (f sourceFunc) EachProduct(ctx context.Context, batchSize int, fn func([]catalog.Product) error) error {
	return f(ctx, batchSize, fn)
}
