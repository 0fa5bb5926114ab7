// Package normalize turns parsed record fragments into stored canonical
// rows: plausibility bounds first, then batched inserts. Each fragment is
// its own row; downstream consumers aggregate by time bucket as needed.
package normalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

const defaultBatchSize = 100

// RecordWriter is the slice of the store the normalizer needs.
type RecordWriter interface {
	InsertSignalRecords(ctx context.Context, records []model.SignalRecord) (int, error)
}

// Writer validates and batches canonical record writes.
type Writer struct {
	store     RecordWriter
	bounds    Bounds
	batchSize int
}

// NewWriter builds a Writer with the given bounds. Nil bounds means the
// built-in defaults.
func NewWriter(store RecordWriter, bounds Bounds) *Writer {
	if bounds == nil {
		bounds = DefaultBounds()
	}
	return &Writer{store: store, bounds: bounds, batchSize: defaultBatchSize}
}

// Write persists the records in insert batches and returns the count
// actually written. Out-of-bounds fields are cleared; records left empty are
// dropped. A failed batch is logged and skipped so one poison batch cannot
// sink the rest of an import.
func (w *Writer) Write(ctx context.Context, records []model.SignalRecord) (int, error) {
	cleared, dropped := 0, 0
	keep := make([]model.SignalRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		cleared += w.bounds.Check(&rec)
		if rec.Validate() != nil {
			dropped++
			continue
		}
		keep = append(keep, rec)
	}

	written := 0
	for start := 0; start < len(keep); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := start + w.batchSize
		if end > len(keep) {
			end = len(keep)
		}
		n, err := w.store.InsertSignalRecords(ctx, keep[start:end])
		if err != nil {
			zap.L().Warn("record batch insert failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", end-start),
				zap.Error(err))
			continue
		}
		written += n
	}

	if cleared > 0 || dropped > 0 {
		zap.L().Debug("records sanitized",
			zap.Int("fields_cleared", cleared),
			zap.Int("records_dropped", dropped))
	}
	return written, nil
}
