package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS price_samples (
    id          BIGSERIAL PRIMARY KEY,
    bucket_key  TEXT NOT NULL,
    origin      TEXT NOT NULL,
    destination TEXT NOT NULL,
    price       INTEGER NOT NULL CHECK (price > 0),
    observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_samples_route ON price_samples(origin, destination, observed_at);
CREATE INDEX IF NOT EXISTS idx_price_samples_bucket ON price_samples(bucket_key);

CREATE TABLE IF NOT EXISTS price_buckets (
    bucket_key   TEXT PRIMARY KEY,
    origin       TEXT NOT NULL,
    destination  TEXT NOT NULL,
    month        TEXT NOT NULL,
    sample_count BIGINT NOT NULL DEFAULT 0,
    min_price    INTEGER NOT NULL,
    price_sum    BIGINT NOT NULL DEFAULT 0,
    first_seen   TIMESTAMPTZ NOT NULL,
    last_seen    TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_buckets_route ON price_buckets(origin, destination);
CREATE INDEX IF NOT EXISTS idx_price_buckets_expiry ON price_buckets(expires_at);

CREATE TABLE IF NOT EXISTS rate_limit_windows (
    key          TEXT PRIMARY KEY,
    hits         BIGINT NOT NULL,
    window_start TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_cache (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expiry ON kv_cache(expires_at);
`

// CreateSchema creates the tables used by the PostgreSQL backend.
func (s *Store) CreateSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
