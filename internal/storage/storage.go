// Package storage holds the pool event journal: an append-only sequence of
// PoolEvents numbered by Seq.
package storage

import (
	"context"
	"errors"

	"ammPool/internal/model"
)

// ErrSeqGap reports a batch that does not continue the journal.
var ErrSeqGap = errors.New("event sequence does not continue the journal")

// Storage appends events to the journal. PutEventBatch must be safe to call
// again with a batch that was partly or fully written already.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
	LastSeq(ctx context.Context) (uint64, error)
}

// EventFunc receives journal events in Seq order. decodeErr is set for a
// record that could not be decoded; returning an error stops the replay.
type EventFunc func(event model.PoolEvent, decodeErr error) error

// EventSource replays the journal after a given Seq.
type EventSource interface {
	StreamEvents(ctx context.Context, afterSeq uint64, fn EventFunc) error
}
