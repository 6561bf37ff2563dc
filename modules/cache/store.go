// Package cache provides the namespaced read-through cache of the catalog:
// pluggable key/value stores, an advisory wrapper that never fails a read,
// the namespace registry and the invalidation coordinator.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("cache store closed")

// Store is a key/value cache backend with TTL and prefix deletion.
type Store interface {
	// Get returns the payload stored under key. A missing or expired key
	// reports found=false and no error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// DeleteByPrefix removes every key starting with prefix. An empty
	// prefix matches nothing.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// DeleteAll removes every key owned by this store.
	DeleteAll(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// MemoryReporter is implemented by stores that can report their memory use.
type MemoryReporter interface {
	MemoryUsage(ctx context.Context) (int64, error)
}

// Stats tracks cache statistics.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
	Errors  uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	TotalGets uint64  `json:"total_gets"`
}

func (s *Stats) hit()             { atomic.AddUint64(&s.Hits, 1) }
func (s *Stats) miss()            { atomic.AddUint64(&s.Misses, 1) }
func (s *Stats) set()             { atomic.AddUint64(&s.Sets, 1) }
func (s *Stats) deleted(n uint64) { atomic.AddUint64(&s.Deletes, n) }
func (s *Stats) failed()          { atomic.AddUint64(&s.Errors, 1) }

// Snapshot returns the current statistics. HitRate is a percentage.
func (s *Stats) Snapshot() StatsSnapshot {
	hits := atomic.LoadUint64(&s.Hits)
	misses := atomic.LoadUint64(&s.Misses)
	totalGets := hits + misses

	var hitRate float64
	if totalGets > 0 {
		hitRate = float64(hits) / float64(totalGets) * 100
	}

	return StatsSnapshot{
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadUint64(&s.Sets),
		Deletes:   atomic.LoadUint64(&s.Deletes),
		Errors:    atomic.LoadUint64(&s.Errors),
		HitRate:   hitRate,
		TotalGets: totalGets,
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.Hits, 0)
	atomic.StoreUint64(&s.Misses, 0)
	atomic.StoreUint64(&s.Sets, 0)
	atomic.StoreUint64(&s.Deletes, 0)
	atomic.StoreUint64(&s.Errors, 0)
}
