package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Deleter is the part of the cache the coordinator needs.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) (int64, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// Failure is one target the coordinator could not clear.
type Failure struct {
	Target Target
	Err    error
}

const (
	failureBuffer    = 256
	invalidateFanOut = 8
)

// Coordinator clears dependent namespaces after a store write. Deletes run
// concurrently on a context detached from the caller's cancellation and
// bounded by its own timeout. Failures never reach the caller; they are
// queued to a supervisor goroutine that logs and counts them. A failed
// target stays stale for at most one TTL.
type Coordinator struct {
	cache    Deleter
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder

	failures chan Failure
	quit     chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
}

// NewCoordinator creates a coordinator. Call Start to run the supervisor.
func NewCoordinator(cache Deleter, timeout time.Duration, logger *zap.Logger, recorder Recorder) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Coordinator{
		cache:    cache,
		timeout:  timeout,
		logger:   logger,
		recorder: recorder,
		failures: make(chan Failure, failureBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the supervisor goroutine.
func (c *Coordinator) Start() {
	c.start.Do(func() {
		go c.supervise()
	})
}

// Stop stops the supervisor after draining queued failures.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.Start()
	c.stop.Do(func() { close(c.quit) })
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate clears targets and returns once every delete has finished or
// the invalidation timeout expired.
func (c *Coordinator) Invalidate(ctx context.Context, targets ...Target) {
	targets = dedupe(targets)
	if len(targets) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var exact []string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(invalidateFanOut)
	for _, t := range targets {
		if t.Exact {
			exact = append(exact, t.Value)
			continue
		}
		g.Go(func() error {
			n, err := c.cache.DeleteByPrefix(gctx, t.Value)
			c.settle(t, n, err)
			return nil
		})
	}
	if len(exact) > 0 {
		g.Go(func() error {
			n, err := c.cache.Delete(gctx, exact...)
			for _, t := range targets {
				if t.Exact {
					c.settle(t, 0, err)
				}
			}
			if err == nil {
				c.recorder.InvalidationDeleted("exact", n)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) settle(t Target, n int64, err error) {
	if err != nil {
		c.report(Failure{Target: t, Err: err})
		return
	}
	if !t.Exact {
		c.recorder.InvalidationDeleted(t.Namespace, n)
	}
}

func (c *Coordinator) report(f Failure) {
	select {
	case c.failures <- f:
	default:
		c.logger.Error("invalidation failure queue full",
			zap.Stringer("target", f.Target),
			zap.Error(f.Err))
		c.recorder.InvalidationFailed(f.Target.Namespace)
	}
}

func (c *Coordinator) supervise() {
	defer close(c.done)
	for {
		select {
		case f := <-c.failures:
			c.handle(f)
		case <-c.quit:
			for {
				select {
				case f := <-c.failures:
					c.handle(f)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) handle(f Failure) {
	c.recorder.InvalidationFailed(f.Target.Namespace)
	c.logger.Warn("cache invalidation failed; entries expire with their TTL",
		zap.Stringer("target", f.Target),
		zap.Error(f.Err))
}

func dedupe(targets []Target) []Target {
	seen := make(map[Target]struct{}, len(targets))
	out := targets[:0:0]
	for _, t := range targets {
		if t.Value == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
