// Package persistence writes the payload audit trail off the request path.
package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"terminal-core/pkg/db"
	"terminal-core/pkg/logger"
)

// Store is the batch sink, satisfied by *db.Queries.
type Store interface {
	InsertPayloads(ctx context.Context, recs []db.PayloadRecord) error
}

// BatchWriter buffers assembled payloads and stores them in one transaction
// when the buffer fills or the flush interval passes.
type BatchWriter struct {
	store       Store
	buffer      []db.PayloadRecord
	mu          sync.Mutex
	flushMu     sync.Mutex
	maxSize     int
	flushIntval time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	metrics     BatchWriterMetrics
	log         *zap.Logger
}

// BatchWriterMetrics provides statistics about batch operations.
type BatchWriterMetrics struct {
	TotalWrites   uint64    `json:"totalWrites"`
	TotalBatches  uint64    `json:"totalBatches"`
	TotalErrors   uint64    `json:"totalErrors"`
	LastBatchSize int       `json:"lastBatchSize"`
	LastFlushTime time.Time `json:"lastFlushTime"`
}

// NewBatchWriter creates a batch writer with specified parameters.
// maxSize: max records before auto-flush
// interval: time-based flush interval
func NewBatchWriter(store Store, maxSize int, interval time.Duration) *BatchWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	bw := &BatchWriter{
		store:       store,
		buffer:      make([]db.PayloadRecord, 0, maxSize),
		maxSize:     maxSize,
		flushIntval: interval,
		done:        make(chan struct{}),
		log:         logger.Named("persistence"),
	}

	bw.wg.Add(1)
	go bw.backgroundFlush()

	return bw
}

// Write adds a record to the batch. CreatedAt is stamped now so the stored
// order matches the assembly order.
func (bw *BatchWriter) Write(rec db.PayloadRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, rec)
	shouldFlush := len(bw.buffer) >= bw.maxSize
	bw.mu.Unlock()

	if shouldFlush {
		_ = bw.Flush(context.Background())
	}
}

// Flush immediately stores all buffered records. Failed batches are dropped
// and counted.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	// serialise flushes so batches land in write order
	bw.flushMu.Lock()
	defer bw.flushMu.Unlock()

	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	recs := bw.buffer
	bw.buffer = make([]db.PayloadRecord, 0, bw.maxSize)
	bw.mu.Unlock()

	return bw.executeBatch(ctx, recs)
}

func (bw *BatchWriter) executeBatch(ctx context.Context, recs []db.PayloadRecord) error {
	atomic.AddUint64(&bw.metrics.TotalWrites, uint64(len(recs)))
	atomic.AddUint64(&bw.metrics.TotalBatches, 1)

	err := bw.store.InsertPayloads(ctx, recs)

	bw.mu.Lock()
	bw.metrics.LastBatchSize = len(recs)
	bw.metrics.LastFlushTime = time.Now()
	bw.mu.Unlock()

	if err != nil {
		atomic.AddUint64(&bw.metrics.TotalErrors, 1)
		bw.log.Error("payload batch failed", zap.Int("records", len(recs)), zap.Error(err))
		return err
	}
	bw.log.Debug("payload batch stored", zap.Int("records", len(recs)))
	return nil
}

// backgroundFlush periodically flushes the buffer.
func (bw *BatchWriter) backgroundFlush() {
	defer bw.wg.Done()
	ticker := time.NewTicker(bw.flushIntval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = bw.Flush(context.Background())
		case <-bw.done:
			// Final flush before shutdown
			_ = bw.Flush(context.Background())
			return
		}
	}
}

// Pending returns the number of buffered records.
func (bw *BatchWriter) Pending() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// GetMetrics returns the current metrics for the batch writer.
func (bw *BatchWriter) GetMetrics() BatchWriterMetrics {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return BatchWriterMetrics{
		TotalWrites:   atomic.LoadUint64(&bw.metrics.TotalWrites),
		TotalBatches:  atomic.LoadUint64(&bw.metrics.TotalBatches),
		TotalErrors:   atomic.LoadUint64(&bw.metrics.TotalErrors),
		LastBatchSize: bw.metrics.LastBatchSize,
		LastFlushTime: bw.metrics.LastFlushTime,
	}
}

// Close flushes what is left and stops the background loop. It is idempotent.
func (bw *BatchWriter) Close() error {
	bw.closeOnce.Do(func() { close(bw.done) })
	bw.wg.Wait()
	return nil
}
