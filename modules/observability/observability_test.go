package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/catalog-service/modules/cache"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ cache.Recorder = (*Collector)(nil)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1), "debug enabled")
	}

	_, err := NewLogger("loud", "json")
	assert.Error(t, err)
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("catalog")

	c.CacheLookup("products-listing", true)
	c.CacheLookup("products-listing", false)
	c.CacheLookup("products-listing", false)
	c.InvalidationDeleted("products-listing", 4)
	c.InvalidationFailed("catalog-menu")
	c.SearchIndexed("upsert", errors.New("boom"))
	c.ObserveHTTP("GET", "/api/v1/products", 200, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("products-listing", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("products-listing", "miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.InvalidationDeletes.WithLabelValues("products-listing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InvalidationFailures.WithLabelValues("catalog-menu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchIndexOperations.WithLabelValues("upsert", "error")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "catalog_http_requests_total"))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("catalog")
	b := NewCollector("catalog")
	a.CacheError("get")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheErrors.WithLabelValues("get")))
}
