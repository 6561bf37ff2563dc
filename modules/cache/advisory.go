package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Recorder receives cache metrics. Labels are namespace tags, never full
// keys.
type Recorder interface {
	CacheLookup(namespace string, hit bool)
	CacheError(op string)
	InvalidationDeleted(namespace string, n int64)
	InvalidationFailed(namespace string)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) CacheLookup(string, bool)          {}
func (NopRecorder) CacheError(string)                 {}
func (NopRecorder) InvalidationDeleted(string, int64) {}
func (NopRecorder) InvalidationFailed(string)         {}

// AdvisoryConfig tunes the advisory wrapper.
type AdvisoryConfig struct {
	// OpTimeout bounds every backend call.
	OpTimeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration
}

// DefaultAdvisoryConfig returns the default advisory settings.
func DefaultAdvisoryConfig() AdvisoryConfig {
	return AdvisoryConfig{
		OpTimeout:       250 * time.Millisecond,
		BreakerFailures: 5,
		BreakerCooldown: 10 * time.Second,
	}
}

// Advisory wraps a Store so the cache can never fail a read: errors and
// timeouts on Get become misses and Set failures are logged and dropped.
// Consecutive failures open a circuit breaker that skips the backend until
// it cools down.
type Advisory struct {
	store    Store
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
	stats    *Stats
}

// NewAdvisory wraps store. A nil logger or recorder disables that output.
func NewAdvisory(store Store, cfg AdvisoryConfig, logger *zap.Logger, recorder Recorder) *Advisory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultAdvisoryConfig().BreakerFailures
	}
	a := &Advisory{
		store:    store,
		timeout:  cfg.OpTimeout,
		logger:   logger,
		recorder: recorder,
		stats:    &Stats{},
	}
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return a
}

func (a *Advisory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

type getResult struct {
	value []byte
	found bool
}

// Get returns the cached payload. Any backend failure is reported as a miss.
func (a *Advisory) Get(ctx context.Context, key string) ([]byte, bool) {
	ns := NamespaceOf(key)
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	res, err := a.breaker.Execute(func() (any, error) {
		v, found, err := a.store.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	if err != nil {
		a.fail("get", key, err)
		a.stats.miss()
		a.recorder.CacheLookup(ns, false)
		return nil, false
	}
	r := res.(getResult)
	if !r.found {
		a.stats.miss()
		a.recorder.CacheLookup(ns, false)
		return nil, false
	}
	a.stats.hit()
	a.recorder.CacheLookup(ns, true)
	return r.value, true
}

// Set stores value for ttl. Failures are logged and swallowed.
func (a *Advisory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	_, err := a.breaker.Execute(func() (any, error) {
		return nil, a.store.Set(ctx, key, value, ttl)
	})
	if err != nil {
		a.fail("set", key, err)
		return
	}
	a.stats.set()
}

// Delete removes exact keys.
func (a *Advisory) Delete(ctx context.Context, keys ...string) (int64, error) {
	return a.deleting(ctx, "delete", func(ctx context.Context) (int64, error) {
		return a.store.Delete(ctx, keys...)
	})
}

// DeleteByPrefix removes every key under prefix.
func (a *Advisory) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	return a.deleting(ctx, "delete_prefix", func(ctx context.Context) (int64, error) {
		return a.store.DeleteByPrefix(ctx, prefix)
	})
}

// DeleteAll clears the store. It is not bounded by the operation timeout and
// bypasses the breaker so an operator flush always reaches the backend.
func (a *Advisory) DeleteAll(ctx context.Context) (int64, error) {
	n, err := a.store.DeleteAll(ctx)
	if err != nil {
		a.stats.failed()
		a.recorder.CacheError("delete_all")
		return n, err
	}
	a.stats.deleted(uint64(n))
	return n, nil
}

func (a *Advisory) deleting(ctx context.Context, op string, fn func(context.Context) (int64, error)) (int64, error) {
	res, err := a.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		a.stats.failed()
		a.recorder.CacheError(op)
		return 0, err
	}
	n := res.(int64)
	a.stats.deleted(uint64(n))
	return n, nil
}

func (a *Advisory) fail(op, key string, err error) {
	a.stats.failed()
	a.recorder.CacheError(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	a.logger.Warn("cache operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))
}

// Ping checks the backend directly.
func (a *Advisory) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.store.Ping(ctx)
}

// MemoryUsage reports backend memory when the store supports it.
func (a *Advisory) MemoryUsage(ctx context.Context) (int64, bool, error) {
	r, ok := a.store.(MemoryReporter)
	if !ok {
		return 0, false, nil
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	n, err := r.MemoryUsage(ctx)
	return n, true, err
}

// BreakerState returns the circuit breaker state name.
func (a *Advisory) BreakerState() string {
	return a.breaker.State().String()
}

// Stats returns the current cache statistics.
func (a *Advisory) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

// ResetStats resets all statistics counters.
func (a *Advisory) ResetStats() {
	a.stats.Reset()
}

// Close closes the backend.
func (a *Advisory) Close() error {
	return a.store.Close()
}

// NamespaceOf returns the namespace tag of a key, the part before the first
// ':'.
func NamespaceOf(key string) string {
	tag, _, _ := strings.Cut(key, ":")
	return tag
}
