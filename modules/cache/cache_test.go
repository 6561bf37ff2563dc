package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// brokenStore fails every call.
type brokenStore struct {
	calls atomic.Int64
}

var errBackendDown = errors.New("backend down")

func (s *brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	s.calls.Add(1)
	return nil, false, errBackendDown
}

func (s *brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	s.calls.Add(1)
	return errBackendDown
}

func (s *brokenStore) Delete(context.Context, ...string) (int64, error) {
	s.calls.Add(1)
	return 0, errBackendDown
}

func (s *brokenStore) DeleteByPrefix(context.Context, string) (int64, error) {
	s.calls.Add(1)
	return 0, errBackendDown
}

func (s *brokenStore) DeleteAll(context.Context) (int64, error) {
	s.calls.Add(1)
	return 0, errBackendDown
}

func (s *brokenStore) Ping(context.Context) error { return errBackendDown }
func (s *brokenStore) Close() error               { return nil }

// countingRecorder records invalidation outcomes.
type countingRecorder struct {
	NopRecorder
	mu       sync.Mutex
	failed   map[string]int
	deleted  map[string]int64
	lookups  map[bool]int
	errorOps map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		failed:   map[string]int{},
		deleted:  map[string]int64{},
		lookups:  map[bool]int{},
		errorOps: map[string]int{},
	}
}

func (r *countingRecorder) CacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[hit]++
}

func (r *countingRecorder) CacheError(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorOps[op]++
}

func (r *countingRecorder) InvalidationDeleted(ns string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[ns] += n
}

func (r *countingRecorder) InvalidationFailed(ns string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[ns]++
}

func (r *countingRecorder) failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.failed {
		n += v
	}
	return n
}

func newTestAdvisory(store Store) *Advisory {
	return NewAdvisory(store, DefaultAdvisoryConfig(), nil, nil)
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)

	clock.Advance(59 * time.Second)
	_, found, _ = s.Get(ctx, "k")
	assert.True(t, found)

	clock.Advance(time.Second)
	_, found, _ = s.Get(ctx, "k")
	assert.False(t, found, "entry expires exactly at its TTL")
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, k := range []string{"products-listing:a", "products-listing:b", "products-search-fallback:a", "catalog-menu"} {
		require.NoError(t, s.Set(ctx, k, []byte("x"), time.Hour))
	}

	n, err := s.DeleteByPrefix(ctx, "products-listing:")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 2, s.Len())

	n, err = s.DeleteByPrefix(ctx, "category-products:")
	require.NoError(t, err)
	assert.Zero(t, n, "an empty namespace is a no-op")

	n, err = s.DeleteByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAdvisory_HitMissStats(t *testing.T) {
	a := newTestAdvisory(NewMemoryStore())
	ctx := context.Background()

	_, found := a.Get(ctx, "catalog-menu")
	assert.False(t, found)

	a.Set(ctx, "catalog-menu", []byte(`[]`), time.Minute)
	v, found := a.Get(ctx, "catalog-menu")
	assert.True(t, found)
	assert.Equal(t, []byte(`[]`), v)

	stats := a.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Sets)
	assert.EqualValues(t, 2, stats.TotalGets)
	assert.Equal(t, 50.0, stats.HitRate)

	a.ResetStats()
	assert.Zero(t, a.Stats().TotalGets)
}

func TestAdvisory_FailuresDegradeToMiss(t *testing.T) {
	store := &brokenStore{}
	rec := newCountingRecorder()
	a := NewAdvisory(store, AdvisoryConfig{OpTimeout: time.Second, BreakerFailures: 3, BreakerCooldown: time.Hour}, nil, rec)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, found := a.Get(ctx, "catalog-menu")
		assert.False(t, found)
		a.Set(ctx, "catalog-menu", []byte("x"), time.Minute)
	}

	assert.EqualValues(t, 3, store.calls.Load(), "the breaker stops calling a failing backend")
	assert.Equal(t, "open", a.BreakerState())
	stats := a.Stats()
	assert.EqualValues(t, 10, stats.Misses)
	assert.EqualValues(t, 20, stats.Errors)
	assert.Equal(t, 10, rec.lookups[false])
}

// slowStore blocks Get until the context is done.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestAdvisory_TimeoutIsMiss(t *testing.T) {
	a := NewAdvisory(slowStore{NewMemoryStore()}, AdvisoryConfig{OpTimeout: 20 * time.Millisecond}, nil, nil)

	start := time.Now()
	_, found := a.Get(context.Background(), "catalog-menu")
	assert.False(t, found)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, a.Stats().Errors)
}

func TestNamespaceOf(t *testing.T) {
	assert.Equal(t, "products-listing", NamespaceOf("products-listing:shampoo:none"))
	assert.Equal(t, "catalog-menu", NamespaceOf("catalog-menu"))
}

func TestPluginModule_Health(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memory"
	cfg.TTL = TTLConfig{Listing: 10 * time.Minute, Category: 2 * time.Hour}

	m, err := NewPluginModuleWithStore(NewMemoryStore(), cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	h := m.Health(context.Background())
	assert.True(t, h.Healthy)
	assert.Equal(t, "10m0s", h.Details["listing_ttl"])
	assert.Equal(t, "2h0m0s", h.Details["category_ttl"])
	assert.Equal(t, "closed", h.Details["breaker"])

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}
