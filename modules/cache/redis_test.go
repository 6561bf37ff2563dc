package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Redis-backed tests require Redis on localhost:6379 and skip otherwise.
const testRedisAddr = "localhost:6379"

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	client := NewRedisClient(RedisConfig{Addr: testRedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	s := NewRedisStore(client, "test:"+t.Name()+":")
	t.Cleanup(func() {
		_, _ = s.DeleteAll(context.Background())
		s.Close()
	})
	return s
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "product-by-slug:rose-serum", []byte(`{"id":"1"}`), time.Minute))
	v, found, err := s.Get(ctx, "product-by-slug:rose-serum")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"id":"1"}`, string(v))

	n, err := s.Delete(ctx, "product-by-slug:rose-serum", "product-by-slug:other")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisStore_DeleteByPrefix(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Set(ctx, "products-listing:"+IntSegment(i), []byte("x"), time.Minute))
	}
	require.NoError(t, s.Set(ctx, "products-search-fallback:a", []byte("x"), time.Minute))
	require.NoError(t, s.Set(ctx, "prod*:literal", []byte("x"), time.Minute))

	n, err := s.DeleteByPrefix(ctx, "products-listing:")
	require.NoError(t, err)
	assert.EqualValues(t, 250, n)

	n, err = s.DeleteByPrefix(ctx, "prod*")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "glob characters in a prefix are literal")

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	used, err := s.MemoryUsage(ctx)
	require.NoError(t, err)
	assert.Positive(t, used)
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	n, err := parseUsedMemory(info)
	require.NoError(t, err)
	assert.EqualValues(t, 1048576, n)

	_, err = parseUsedMemory("# Memory\r\n")
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `catalog:prod\*\?\[x\]`, escapeGlob("catalog:prod*?[x]"))
}
