package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry, so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Cache metrics
	CacheLookups          *prometheus.CounterVec
	CacheErrors           *prometheus.CounterVec
	InvalidationDeletes   *prometheus.CounterVec
	InvalidationFailures  *prometheus.CounterVec
	IdentifierCollisions  *prometheus.CounterVec
	SearchIndexOperations *prometheus.CounterVec
}

// NewCollector creates a collector with the given metric namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Failed cache backend operations",
			},
			[]string{"op"},
		),
		InvalidationDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidation_deleted_keys_total",
				Help:      "Keys removed by invalidation",
			},
			[]string{"namespace"},
		),
		InvalidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidation_failures_total",
				Help:      "Invalidation targets that could not be cleared",
			},
			[]string{"namespace"},
		),
		IdentifierCollisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "identifier_collisions_total",
				Help:      "Writes that lost an identifier race and were retried",
			},
			[]string{"entity"},
		),
		SearchIndexOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_index_operations_total",
				Help:      "Search index operations by kind and result",
			},
			[]string{"op", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheLookups,
		c.CacheErrors,
		c.InvalidationDeletes,
		c.InvalidationFailures,
		c.IdentifierCollisions,
		c.SearchIndexOperations,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func (c *Collector) CacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(namespace, result).Inc()
}

// CacheError records a failed cache operation.
func (c *Collector) CacheError(op string) {
	c.CacheErrors.WithLabelValues(op).Inc()
}

// InvalidationDeleted records keys removed by invalidation.
func (c *Collector) InvalidationDeleted(namespace string, n int64) {
	c.InvalidationDeletes.WithLabelValues(namespace).Add(float64(n))
}

// InvalidationFailed records a target that could not be cleared.
func (c *Collector) InvalidationFailed(namespace string) {
	c.InvalidationFailures.WithLabelValues(namespace).Inc()
}

// IdentifierCollision records a lost identifier race.
func (c *Collector) IdentifierCollision(entity string) {
	c.IdentifierCollisions.WithLabelValues(entity).Inc()
}

// SearchIndexed records a search index operation.
func (c *Collector) SearchIndexed(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.SearchIndexOperations.WithLabelValues(op, result).Inc()
}
