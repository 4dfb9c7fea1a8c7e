package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autopoolScope/internal/model"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS autopool_snapshot_values (
	chain_id     BIGINT      NOT NULL,
	block_ts     TIMESTAMPTZ NOT NULL,
	block_number BIGINT,
	column_name  TEXT        NOT NULL,
	value        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, block_ts, column_name)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store provides Postgres persistence for snapshots and resume state.
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

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertSnapshotValues inserts or updates snapshot cells in batches of batchSize.
func (s *Store) UpsertSnapshotValues(ctx context.Context, values []model.SnapshotValue, batchSize int) error {
	for _, part := range chunk(values, batchSize) {
		if err := s.upsertSnapshotChunk(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

// chunk splits items into consecutive runs of at most size. A size <= 0
// yields a single run.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size > len(items) {
		size = len(items)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func (s *Store) upsertSnapshotChunk(ctx context.Context, values []model.SnapshotValue) error {
	batch := &pgx.Batch{}
	for _, v := range values {
		var block *int64
		if v.BlockNumber != nil {
			b := int64(*v.BlockNumber)
			block = &b
		}
		batch.Queue(`
			INSERT INTO autopool_snapshot_values (
				chain_id, block_ts, block_number, column_name, value, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (chain_id, block_ts, column_name)
			DO UPDATE SET
				block_number = COALESCE(EXCLUDED.block_number, autopool_snapshot_values.block_number),
				value = EXCLUDED.value,
				updated_at = now()
		`,
			int64(v.ChainID),
			v.BlockTime,
			block,
			v.Column,
			v.Value,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range values {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert snapshot value: %w", err)
		}
	}
	return nil
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
