package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/catalog-service/domain/catalog"
	"go.uber.org/zap"
)

// Observer receives index operation outcomes.
type Observer interface {
	SearchIndexed(op string, err error)
}

// ErrQueueFull is reported when an update is dropped.
var ErrQueueFull = errors.New("search queue full")

type nopObserver struct{}

func (nopObserver) SearchIndexed(string, error) {}

// SyncerConfig holds worker pool settings.
type SyncerConfig struct {
	NumWorkers     int
	QueueSize      int
	ProcessTimeout time.Duration
	BatchSize      int
}

// DefaultSyncerConfig returns the default syncer configuration.
func DefaultSyncerConfig() SyncerConfig {
	return SyncerConfig{
		NumWorkers:     2,
		QueueSize:      1024,
		ProcessTimeout: 5 * time.Second,
		BatchSize:      200,
	}
}

type opKind int

const (
	opUpsert opKind = iota
	opDelete
)

func (k opKind) String() string {
	if k == opDelete {
		return "delete"
	}
	return "upsert"
}

type job struct {
	kind      opKind
	doc       Document
	productID string
}

// ProductSource walks every product for a full reindex.
type ProductSource interface {
	EachProduct(ctx context.Context, batchSize int, fn func([]catalog.Product) error) error
}

// Syncer applies index updates asynchronously on a worker pool. Writes to
// the catalog never wait for or fail because of the index.
type Syncer struct {
	config   SyncerConfig
	index    Index
	logger   *zap.Logger
	observer Observer

	jobs    chan job
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

// NewSyncer creates a syncer over index.
func NewSyncer(cfg SyncerConfig, index Index, logger *zap.Logger, observer Observer) *Syncer {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultSyncerConfig().QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSyncerConfig().BatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Syncer{
		config:   cfg,
		index:    index,
		logger:   logger,
		observer: observer,
		jobs:     make(chan job, cfg.QueueSize),
	}
}

// Start starts the workers.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("syncer is already running")
	}
	s.running = true

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	for i := 0; i < s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(workerCtx)
		}()
	}
	s.logger.Info("search syncer started", zap.Int("workers", s.config.NumWorkers))
	return nil
}

func (s *Syncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			s.apply(ctx, j)
		}
	}
}

func (s *Syncer) apply(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ProcessTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case opUpsert:
		err = s.index.Upsert(ctx, j.doc)
	case opDelete:
		err = s.index.Delete(ctx, j.productID)
	}
	s.observer.SearchIndexed(j.kind.String(), err)
	if err != nil {
		s.logger.Warn("search index update failed",
			zap.String("op", j.kind.String()),
			zap.String("product_id", j.productID),
			zap.Error(err))
	}
}

func (s *Syncer) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		s.observer.SearchIndexed(j.kind.String(), ErrQueueFull)
		s.logger.Warn("search index queue full; update dropped until next reindex",
			zap.String("op", j.kind.String()),
			zap.String("product_id", j.productID))
	}
}

// Upsert queues p for indexing.
func (s *Syncer) Upsert(p *catalog.Product) {
	s.enqueue(job{kind: opUpsert, doc: NewDocument(p), productID: p.ID})
}

// Delete queues removal of a product.
func (s *Syncer) Delete(productID string) {
	s.enqueue(job{kind: opDelete, productID: productID})
}

// Search queries the index directly.
func (s *Syncer) Search(ctx context.Context, q Query) (Result, error) {
	return s.index.Search(ctx, q)
}

// Reindex rebuilds the index from source synchronously.
func (s *Syncer) Reindex(ctx context.Context, source ProductSource) (int, error) {
	if err := s.index.Reset(ctx); err != nil {
		return 0, err
	}
	count := 0
	err := source.EachProduct(ctx, s.config.BatchSize, func(batch []catalog.Product) error {
		docs := make([]Document, 0, len(batch))
		for i := range batch {
			docs = append(docs, NewDocument(&batch[i]))
		}
		if err := s.index.Upsert(ctx, docs...); err != nil {
			return err
		}
		count += len(docs)
		return nil
	})
	s.observer.SearchIndexed("reindex", err)
	if err != nil {
		return count, fmt.Errorf("failed to reindex products: %w", err)
	}
	s.logger.Info("search index rebuilt", zap.Int("documents", count))
	return count, nil
}

// Pending returns the number of queued updates.
func (s *Syncer) Pending() int {
	return len(s.jobs)
}

// Stop drains queued updates until ctx is done, then stops the workers.
func (s *Syncer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for len(s.jobs) > 0 {
		select {
		case <-ctx.Done():
			s.cancel()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("search syncer stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
