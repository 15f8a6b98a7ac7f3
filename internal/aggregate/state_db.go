package aggregate

import (
	"context"

	"ammPool/internal/model"
	"ammPool/internal/storage/postgres"
)

// DBCursorStore keeps the cursor in the aggregator_cursor table under Name,
// so several window sizes can aggregate the same journal independently.
type DBCursorStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBCursorStore) Load(ctx context.Context) (model.AggregateCursor, bool, error) {
	if s == nil || s.Store == nil {
		return model.AggregateCursor{}, false, nil
	}
	return s.Store.LoadCursor(ctx, s.Name)
}

func (s *DBCursorStore) Save(ctx context.Context, cursor model.AggregateCursor) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveCursor(ctx, s.Name, cursor)
}
