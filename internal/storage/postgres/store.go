package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

//go:embed schema.sql
var schema string

var (
	_ storage.Storage     = (*Store)(nil)
	_ storage.EventSource = (*Store)(nil)
)

// Store provides Postgres persistence for the pool registry, window metrics
// and the event journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool registry records.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, alias, asset_a, asset_b, claim_token, fee_rate,
				first_seen_seq, first_seen_ts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				alias = EXCLUDED.alias,
				asset_a = EXCLUDED.asset_a,
				asset_b = EXCLUDED.asset_b,
				claim_token = EXCLUDED.claim_token,
				fee_rate = EXCLUDED.fee_rate,
				first_seen_seq = LEAST(pools.first_seen_seq, EXCLUDED.first_seen_seq),
				first_seen_ts = LEAST(pools.first_seen_ts, EXCLUDED.first_seen_ts),
				updated_at = now()
		`,
			p.Address,
			p.Alias,
			p.AssetA,
			p.AssetB,
			p.ClaimToken,
			p.FeeRate,
			int64(p.FirstSeenSeq),
			int64(p.FirstSeenTS),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, rejected_count, add_count, remove_count,
				volume_a, volume_b, fee_a, fee_b, fee_rate_a, fee_rate_b,
				tvl_a, tvl_b, claim_supply, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				rejected_count = EXCLUDED.rejected_count,
				add_count = EXCLUDED.add_count,
				remove_count = EXCLUDED.remove_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				fee_rate_a = EXCLUDED.fee_rate_a,
				fee_rate_b = EXCLUDED.fee_rate_b,
				tvl_a = EXCLUDED.tvl_a,
				tvl_b = EXCLUDED.tvl_b,
				claim_supply = EXCLUDED.claim_supply,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.RejectedCount),
			int64(m.AddCount),
			int64(m.RemoveCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.FeeRateA,
			m.FeeRateB,
			m.TVLA,
			m.TVLB,
			m.ClaimSupply,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

var eventColumns = []string{"seq", "ts", "event_name", "status", "error", "pool_address", "account", "payload"}

// PutEventBatch stages events with COPY and moves them into pool_events,
// ignoring any Seq that is already stored, so a retried batch is idempotent.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", event.Seq, err)
		}
		rows = append(rows, []interface{}{
			int64(event.Seq),
			int64(event.Timestamp),
			event.EventName,
			event.Status,
			event.Error,
			event.Pool,
			event.Account,
			payload,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE pool_events_stage (
			seq BIGINT, ts BIGINT, event_name TEXT, status TEXT, error TEXT,
			pool_address TEXT, account TEXT, payload JSONB
		) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("create stage: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"pool_events_stage"}, eventColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy events: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pool_events (seq, ts, event_name, status, error, pool_address, account, payload)
		SELECT seq, ts, event_name, status, error, pool_address, account, payload
		FROM pool_events_stage
		ORDER BY seq
		ON CONFLICT (seq) DO NOTHING
	`); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// LastSeq returns the highest journaled Seq, 0 when the journal is empty.
func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM pool_events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return uint64(seq), nil
}

// StreamEvents replays journaled events with Seq above afterSeq in Seq order.
func (s *Store) StreamEvents(ctx context.Context, afterSeq uint64, fn storage.EventFunc) error {
	rows, err := s.pool.Query(ctx, `SELECT seq, payload FROM pool_events WHERE seq > $1 ORDER BY seq`, int64(afterSeq))
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}

		var event model.PoolEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			if ferr := fn(model.PoolEvent{}, fmt.Errorf("event %d: %w", seq, err)); ferr != nil {
				return ferr
			}
			continue
		}
		if err := fn(event, nil); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadCursor returns the aggregation cursor stored under name.
func (s *Store) LoadCursor(ctx context.Context, name string) (model.AggregateCursor, bool, error) {
	if name == "" {
		return model.AggregateCursor{}, false, fmt.Errorf("cursor name required")
	}
	var (
		afterSeq, window int64
		updated          time.Time
	)
	row := s.pool.QueryRow(ctx, `SELECT after_seq, window_seconds, updated_at FROM aggregator_cursor WHERE name=$1`, name)
	if err := row.Scan(&afterSeq, &window, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AggregateCursor{}, false, nil
		}
		return model.AggregateCursor{}, false, err
	}
	return model.AggregateCursor{
		AfterSeq:      uint64(afterSeq),
		WindowSeconds: uint64(window),
		UpdatedAt:     updated.UTC().Format(time.RFC3339Nano),
	}, true, nil
}

// SaveCursor upserts the aggregation cursor for name.
func (s *Store) SaveCursor(ctx context.Context, name string, cursor model.AggregateCursor) error {
	if name == "" {
		return fmt.Errorf("cursor name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_cursor (name, after_seq, window_seconds, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET after_seq = EXCLUDED.after_seq,
			window_seconds = EXCLUDED.window_seconds,
			updated_at = now()
	`, name, int64(cursor.AfterSeq), int64(cursor.WindowSeconds))
	return err
}
