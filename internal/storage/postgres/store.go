package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_events (
	pool_address TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	log_index BIGINT NOT NULL,
	topic0 TEXT NOT NULL,
	topics TEXT[] NOT NULL,
	data TEXT NOT NULL,
	event_ts BIGINT NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, sequence, log_index)
);

CREATE TABLE IF NOT EXISTS pool_snapshots (
	pool_address TEXT PRIMARY KEY,
	sequence BIGINT NOT NULL,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pool_reserve_history (
	pool_address TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	reserve_a NUMERIC(78, 0) NOT NULL,
	reserve_b NUMERIC(78, 0) NOT NULL,
	total_shares NUMERIC(78, 0) NOT NULL,
	paused BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, sequence)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_address TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	first_sequence BIGINT NOT NULL,
	last_sequence BIGINT NOT NULL,
	swap_count BIGINT NOT NULL,
	liquidity_adds BIGINT NOT NULL,
	liquidity_removes BIGINT NOT NULL,
	guard_events BIGINT NOT NULL,
	volume JSONB NOT NULL,
	fees JSONB NOT NULL,
	shares_minted NUMERIC(78, 0) NOT NULL,
	shares_burned NUMERIC(78, 0) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregator_state (
	name TEXT PRIMARY KEY,
	last_sequence BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pool events and snapshots.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.LogSink       = (*Store)(nil)
	_ storage.SnapshotStore = (*Store)(nil)
)

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

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutLogBatch inserts event logs, ignoring ones already stored.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		if err := log.Validate(); err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO pool_events (
				pool_address, sequence, log_index, topic0, topics, data, event_ts, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (pool_address, sequence, log_index) DO NOTHING
		`,
			strings.ToLower(log.PoolAddress),
			int64(log.Sequence),
			int64(log.LogIndex),
			strings.ToLower(log.Topic0()),
			log.Topics,
			log.Data,
			int64(log.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert pool event: %w", err)
		}
	}
	return nil
}

// SaveSnapshot upserts the latest state and appends a reserve history row in
// one transaction. A snapshot with a lower sequence than the stored one is
// rejected with storage.ErrStaleSnapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.StateSnapshot) error {
	address := strings.ToLower(snap.Pool.Address)
	if address == "" {
		return fmt.Errorf("snapshot pool address required")
	}
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO pool_snapshots (pool_address, sequence, state, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (pool_address) DO UPDATE
		SET sequence = EXCLUDED.sequence, state = EXCLUDED.state, updated_at = now()
		WHERE pool_snapshots.sequence <= EXCLUDED.sequence
	`, address, int64(snap.Pool.Sequence), string(state))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save sequence %d: %w", snap.Pool.Sequence, storage.ErrStaleSnapshot)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pool_reserve_history (
			pool_address, sequence, reserve_a, reserve_b, total_shares, paused, created_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, now())
		ON CONFLICT (pool_address, sequence) DO NOTHING
	`,
		address,
		int64(snap.Pool.Sequence),
		numeric(snap.Pool.ReserveA),
		numeric(snap.Pool.ReserveB),
		numeric(snap.Pool.TotalShares),
		snap.Pool.Paused,
	); err != nil {
		return fmt.Errorf("insert reserve history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the latest stored state for a pool.
func (s *Store) LoadSnapshot(ctx context.Context, poolAddress string) (model.StateSnapshot, bool, error) {
	if poolAddress == "" {
		return model.StateSnapshot{}, false, fmt.Errorf("pool address required")
	}
	var state []byte
	row := s.pool.QueryRow(ctx, `SELECT state FROM pool_snapshots WHERE pool_address=$1`, strings.ToLower(poolAddress))
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StateSnapshot{}, false, nil
		}
		return model.StateSnapshot{}, false, err
	}
	var snap model.StateSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return model.StateSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// EventCount returns how many event logs are stored for a pool.
func (s *Store) EventCount(ctx context.Context, poolAddress string) (int64, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM pool_events WHERE pool_address=$1`, strings.ToLower(poolAddress))
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertWindowMetrics writes aggregated windows, replacing any stored window
// with the same pool, size and start.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		volume, err := json.Marshal(m.Volume)
		if err != nil {
			return fmt.Errorf("marshal volume: %w", err)
		}
		fees, err := json.Marshal(m.Fees)
		if err != nil {
			return fmt.Errorf("marshal fees: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				first_sequence, last_sequence, swap_count, liquidity_adds, liquidity_removes,
				guard_events, volume, fees, shares_minted, shares_burned, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13::numeric,$14::numeric,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				first_sequence = EXCLUDED.first_sequence,
				last_sequence = EXCLUDED.last_sequence,
				swap_count = EXCLUDED.swap_count,
				liquidity_adds = EXCLUDED.liquidity_adds,
				liquidity_removes = EXCLUDED.liquidity_removes,
				guard_events = EXCLUDED.guard_events,
				volume = EXCLUDED.volume,
				fees = EXCLUDED.fees,
				shares_minted = EXCLUDED.shares_minted,
				shares_burned = EXCLUDED.shares_burned,
				updated_at = now()
		`,
			strings.ToLower(m.PoolAddress),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.FirstSequence),
			int64(m.LastSequence),
			int64(m.SwapCount),
			int64(m.LiquidityAdds),
			int64(m.LiquidityRemoves),
			int64(m.GuardEvents),
			volume,
			fees,
			numeric(m.SharesMinted),
			numeric(m.SharesBurned),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

// LoadState returns the last sequence recorded under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var sequence int64
	row := s.pool.QueryRow(ctx, `SELECT last_sequence FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&sequence); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(sequence), true, nil
}

func (s *Store) SaveState(ctx context.Context, name string, sequence uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_sequence, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_sequence = EXCLUDED.last_sequence, updated_at = now()
	`, name, int64(sequence))
	return err
}

func numeric(value string) string {
	if value == "" {
		return "0"
	}
	return value
}
