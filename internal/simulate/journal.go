package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// journalWriter appends event batches to storage and keeps the runner's Seq
// numbering in step with what the journal already holds.
type journalWriter struct {
	sink    storage.Storage
	retries int
	backoff time.Duration
	logger  *zap.Logger

	written uint64
}

// resume reads the last journaled Seq so a new run continues the journal.
func (w *journalWriter) resume(ctx context.Context) (uint64, error) {
	var last uint64
	err := withRetry(ctx, w.retries, w.backoff, func(ctx context.Context) error {
		seq, err := w.sink.LastSeq(ctx)
		if err != nil {
			w.logger.Warn("read journal position failed", zap.Error(err))
			return err
		}
		last = seq
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read journal position: %w", err)
	}
	w.written = last
	return last, nil
}

func (w *journalWriter) write(ctx context.Context, batch []model.PoolEvent) error {
	if len(batch) == 0 {
		return nil
	}
	first, last := batch[0].Seq, batch[len(batch)-1].Seq
	if first != w.written+1 {
		return fmt.Errorf("%w: batch starts at %d after %d", storage.ErrSeqGap, first, w.written)
	}

	err := withRetry(ctx, w.retries, w.backoff, func(ctx context.Context) error {
		err := w.sink.PutEventBatch(ctx, batch)
		if errors.Is(err, storage.ErrSeqGap) {
			return permanent{err}
		}
		if err != nil {
			w.logger.Warn("store events failed", zap.Error(err), zap.Uint64("first_seq", first), zap.Int("events", len(batch)))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("store events %d-%d: %w", first, last, err)
	}
	w.written = last
	w.logger.Debug("batch stored", zap.Int("events", len(batch)), zap.Uint64("last_seq", last))
	return nil
}

// permanent marks an error that another attempt cannot fix.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// withRetry calls fn until it succeeds, returns a permanent error, or
// maxRetries retries have failed. The delay doubles after each attempt.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var stop permanent
		if errors.As(err, &stop) {
			return stop.err
		}
		if attempt >= maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
