package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JanitorConfig holds memory watchdog settings.
type JanitorConfig struct {
	Interval time.Duration
	// MaxMemoryBytes is the backend memory above which the cache is flushed.
	// Zero disables the watchdog.
	MaxMemoryBytes int64
}

// Janitor periodically flushes the cache when backend memory exceeds the
// configured threshold.
type Janitor struct {
	config JanitorConfig
	cache  *Advisory
	logger *zap.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// NewJanitor creates a janitor over cache.
func NewJanitor(cfg JanitorConfig, cache *Advisory, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{config: cfg, cache: cache, logger: logger}
}

// Start runs the check loop until Stop. It is a no-op when disabled.
func (j *Janitor) Start(ctx context.Context) error {
	if j.config.MaxMemoryBytes <= 0 || j.config.Interval <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("janitor is already running")
	}
	j.running = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				j.Check(loopCtx)
			}
		}
	}()
	j.logger.Info("cache janitor started",
		zap.Duration("interval", j.config.Interval),
		zap.Int64("max_memory_bytes", j.config.MaxMemoryBytes))
	return nil
}

// Check runs one memory check and flushes when over the threshold. It
// reports whether a flush happened.
func (j *Janitor) Check(ctx context.Context) bool {
	used, supported, err := j.cache.MemoryUsage(ctx)
	if !supported {
		return false
	}
	if err != nil {
		j.logger.Warn("failed to read cache memory usage", zap.Error(err))
		return false
	}
	if used <= j.config.MaxMemoryBytes {
		return false
	}
	n, err := j.cache.DeleteAll(ctx)
	if err != nil {
		j.logger.Error("failed to flush cache over memory threshold", zap.Error(err))
		return false
	}
	j.logger.Warn("cache flushed over memory threshold",
		zap.Int64("used_bytes", used),
		zap.Int64("max_memory_bytes", j.config.MaxMemoryBytes),
		zap.Int64("deleted", n))
	return true
}

// Stop stops the loop and waits for it to exit.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
