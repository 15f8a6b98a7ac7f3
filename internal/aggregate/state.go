package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ammPool/internal/model"
)

// ErrCursorWindow means a stored cursor was written for a different window
// size; resuming from it would split windows.
var ErrCursorWindow = errors.New("cursor window size does not match")

// CursorStore persists the aggregation cursor between runs.
type CursorStore interface {
	Load(ctx context.Context) (model.AggregateCursor, bool, error)
	Save(ctx context.Context, cursor model.AggregateCursor) error
}

// FileCursorStore keeps the cursor in a local JSON file, replaced atomically.
type FileCursorStore struct {
	Path string
}

func (s *FileCursorStore) Load(ctx context.Context) (model.AggregateCursor, bool, error) {
	var cursor model.AggregateCursor
	if s == nil || s.Path == "" {
		return cursor, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return cursor, false, nil
	}
	if err != nil {
		return cursor, false, fmt.Errorf("read cursor: %w", err)
	}
	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, false, fmt.Errorf("parse cursor %s: %w", s.Path, err)
	}
	return cursor, true, nil
}

func (s *FileCursorStore) Save(ctx context.Context, cursor model.AggregateCursor) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	cursor.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("create cursor tmp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cursor tmp: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path)
}
