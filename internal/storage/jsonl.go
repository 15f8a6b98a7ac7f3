package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammPool/internal/model"
)

var (
	_ Storage     = (*JsonlStorage)(nil)
	_ EventSource = (*JsonlStorage)(nil)
)

// JsonlStorage keeps the journal as one JSON event per line.
type JsonlStorage struct {
	path string

	mu      sync.Mutex
	lastSeq uint64
	synced  bool
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// LastSeq returns the highest Seq in the file, 0 for a missing file.
func (s *JsonlStorage) LastSeq(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sync(ctx); err != nil {
		return 0, err
	}
	return s.lastSeq, nil
}

// PutEventBatch appends events that continue the journal. Events at or below
// the last journaled Seq are already on disk and are skipped, so a retried
// batch is not written twice.
func (s *JsonlStorage) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sync(ctx); err != nil {
		return err
	}

	next := s.lastSeq
	pending := events[:0:0]
	for _, event := range events {
		if event.Seq <= s.lastSeq {
			continue
		}
		if event.Seq != next+1 {
			return fmt.Errorf("%w: got seq %d after %d", ErrSeqGap, event.Seq, next)
		}
		next = event.Seq
		pending = append(pending, event)
	}
	if len(pending) == 0 {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	// a failed write leaves the tail unknown; rescan before the next batch
	s.synced = false

	writer := bufio.NewWriter(file)
	for _, event := range pending {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", event.Seq, err)
		}
		line = append(line, '\n')
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write event %d: %w", event.Seq, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	s.lastSeq = next
	s.synced = true
	return nil
}

// StreamEvents replays events with Seq above afterSeq. Undecodable lines are
// handed to fn with a decode error.
func (s *JsonlStorage) StreamEvents(ctx context.Context, afterSeq uint64, fn EventFunc) error {
	return s.scan(ctx, func(event model.PoolEvent, decodeErr error) error {
		if decodeErr == nil && event.Seq <= afterSeq {
			return nil
		}
		return fn(event, decodeErr)
	})
}

func (s *JsonlStorage) sync(ctx context.Context) error {
	if s.synced {
		return nil
	}
	var last uint64
	err := s.scan(ctx, func(event model.PoolEvent, decodeErr error) error {
		if decodeErr == nil && event.Seq > last {
			last = event.Seq
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if err != nil {
		return err
	}
	s.lastSeq = last
	s.synced = true
	return nil
}

func (s *JsonlStorage) scan(ctx context.Context, fn EventFunc) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var event model.PoolEvent
		if err := json.Unmarshal(line, &event); err != nil {
			err = fmt.Errorf("line %d: %w", lineNo, err)
			if ferr := fn(model.PoolEvent{}, err); ferr != nil {
				return ferr
			}
			continue
		}
		if err := fn(event, nil); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}
	return nil
}
