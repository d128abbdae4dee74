package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	dropStaleSamplesSQL = `DELETE FROM price_samples
    WHERE bucket_key = $1
      AND EXISTS (
        SELECT 1 FROM price_buckets
        WHERE bucket_key = $1 AND expires_at <= $2
      );`

	insertPriceSampleSQL = `INSERT INTO price_samples (
        bucket_key,
        origin,
        destination,
        price,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	upsertPriceBucketSQL = `INSERT INTO price_buckets (
        bucket_key,
        origin,
        destination,
        month,
        sample_count,
        min_price,
        price_sum,
        first_seen,
        last_seen,
        expires_at
    ) VALUES (
        $1,$2,$3,$4,1,$5,$5,$6,$6,$7
    )
    ON CONFLICT (bucket_key) DO UPDATE
    SET
        sample_count = CASE WHEN price_buckets.expires_at <= EXCLUDED.last_seen
                            THEN 1 ELSE price_buckets.sample_count + 1 END,
        min_price    = CASE WHEN price_buckets.expires_at <= EXCLUDED.last_seen
                            THEN EXCLUDED.min_price ELSE LEAST(price_buckets.min_price, EXCLUDED.min_price) END,
        price_sum    = CASE WHEN price_buckets.expires_at <= EXCLUDED.last_seen
                            THEN EXCLUDED.price_sum ELSE price_buckets.price_sum + EXCLUDED.price_sum END,
        first_seen   = CASE WHEN price_buckets.expires_at <= EXCLUDED.last_seen
                            THEN EXCLUDED.first_seen ELSE price_buckets.first_seen END,
        last_seen    = EXCLUDED.last_seen,
        expires_at   = EXCLUDED.expires_at;`

	bucketStatsSQL = `SELECT
        bucket_key,
        origin,
        destination,
        month,
        sample_count,
        min_price,
        price_sum,
        first_seen,
        last_seen,
        expires_at
    FROM price_buckets
    WHERE bucket_key = $1
      AND expires_at > $2;`

	listRouteBucketsSQL = `SELECT
        bucket_key,
        origin,
        destination,
        month,
        sample_count,
        min_price,
        price_sum,
        first_seen,
        last_seen,
        expires_at
    FROM price_buckets
    WHERE origin = $1
      AND destination = $2
      AND expires_at > $3
    ORDER BY month;`

	listRouteSamplesSQL = `SELECT
        s.bucket_key,
        s.origin,
        s.destination,
        b.month,
        s.price,
        s.observed_at
    FROM price_samples s
    JOIN price_buckets b ON b.bucket_key = s.bucket_key
    WHERE s.origin = $1
      AND s.destination = $2
      AND s.observed_at >= $3
      AND s.observed_at <= $4
      AND b.expires_at > $4
    ORDER BY s.observed_at, s.id;`

	hitWindowSQL = `INSERT INTO rate_limit_windows (
        key,
        hits,
        window_start,
        expires_at
    ) VALUES (
        $1,1,$2,$3
    )
    ON CONFLICT (key) DO UPDATE
    SET
        hits         = CASE WHEN rate_limit_windows.expires_at <= EXCLUDED.window_start
                            THEN 1 ELSE rate_limit_windows.hits + 1 END,
        window_start = CASE WHEN rate_limit_windows.expires_at <= EXCLUDED.window_start
                            THEN EXCLUDED.window_start ELSE rate_limit_windows.window_start END,
        expires_at   = CASE WHEN rate_limit_windows.expires_at <= EXCLUDED.window_start
                            THEN EXCLUDED.expires_at ELSE rate_limit_windows.expires_at END
    RETURNING hits, window_start;`

	getCacheSQL = `SELECT value FROM kv_cache WHERE key = $1 AND expires_at > $2;`

	setCacheSQL = `INSERT INTO kv_cache (key, value, expires_at)
    VALUES ($1,$2,$3)
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        expires_at = EXCLUDED.expires_at;`

	purgeSamplesSQL    = `DELETE FROM price_samples WHERE bucket_key IN (SELECT bucket_key FROM price_buckets WHERE expires_at <= $1);`
	purgeBucketsSQL    = `DELETE FROM price_buckets WHERE expires_at <= $1;`
	purgeWindowsSQL    = `DELETE FROM rate_limit_windows WHERE expires_at <= $1;`
	purgeCacheSQL      = `DELETE FROM kv_cache WHERE expires_at <= $1;`
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceSampleStore persists price samples and their month rollups.
type PriceSampleStore interface {
	AppendSample(ctx context.Context, sample PriceSample, ttl time.Duration) error
	BucketStats(ctx context.Context, key string) (*BucketStats, error)
	ListRouteBuckets(ctx context.Context, origin, destination string) ([]BucketStats, error)
	RouteSamplesBetween(ctx context.Context, origin, destination string, from, to time.Time) ([]PriceSample, error)
}

// WindowCounter increments fixed-window counters atomically.
type WindowCounter interface {
	HitWindow(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error)
}

// CacheStore keeps short-lived JSON documents.
type CacheStore interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Purger reclaims expired state.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Backend is everything the application needs from a store.
type Backend interface {
	PriceSampleStore
	WindowCounter
	CacheStore
	Purger
}

// Store is the PostgreSQL backend.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AppendSample records a sample and folds it into the bucket rollup in one transaction.
func (s *Store) AppendSample(ctx context.Context, sample PriceSample, ttl time.Duration) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	observed := sample.ObservedAt.UTC()
	expires := observed.Add(ttl)

	txErr := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, dropStaleSamplesSQL, sample.BucketKey, observed); err != nil {
			return fmt.Errorf("drop stale samples: %w", err)
		}
		if _, err := tx.Exec(ctx, insertPriceSampleSQL,
			sample.BucketKey,
			sample.Origin,
			sample.Destination,
			sample.Price,
			observed,
		); err != nil {
			return fmt.Errorf("insert price sample: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertPriceBucketSQL,
			sample.BucketKey,
			sample.Origin,
			sample.Destination,
			sample.Month,
			sample.Price,
			observed,
			expires,
		); err != nil {
			return fmt.Errorf("upsert price bucket: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("append sample: %w", txErr)
	}
	return nil
}

// BucketStats returns the rollup of a live bucket, or nil when it is absent or expired.
func (s *Store) BucketStats(ctx context.Context, key string) (*BucketStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, bucketStatsSQL, key, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("bucket stats: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	stats, err := scanBucketStats(rows)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListRouteBuckets lists the live month buckets of a route ordered by month.
func (s *Store) ListRouteBuckets(ctx context.Context, origin, destination string) ([]BucketStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRouteBucketsSQL, origin, destination, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list route buckets: %w", err)
	}
	defer rows.Close()

	buckets := make([]BucketStats, 0)
	for rows.Next() {
		stats, scanErr := scanBucketStats(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		buckets = append(buckets, stats)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return buckets, nil
}

// RouteSamplesBetween lists samples of live buckets observed within [from, to].
func (s *Store) RouteSamplesBetween(ctx context.Context, origin, destination string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRouteSamplesSQL, origin, destination, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list route samples: %w", err)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0)
	for rows.Next() {
		var sample PriceSample
		if err := rows.Scan(
			&sample.BucketKey,
			&sample.Origin,
			&sample.Destination,
			&sample.Month,
			&sample.Price,
			&sample.ObservedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// HitWindow counts one request against a fixed window, resetting it once expired.
func (s *Store) HitWindow(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	pool, err := s.getPool()
	if err != nil {
		return Window{}, err
	}

	now = now.UTC()
	var w Window
	if err := pool.QueryRow(ctx, hitWindowSQL, key, now, now.Add(window)).Scan(&w.Hits, &w.Start); err != nil {
		return Window{}, fmt.Errorf("hit window: %w", err)
	}
	return w, nil
}

// GetJSON decodes a live cache entry into dst. It reports false on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var raw []byte
	if err := pool.QueryRow(ctx, getCacheSQL, key, s.now().UTC()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get cache %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key until ttl elapses.
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", key, err)
	}
	if _, err := pool.Exec(ctx, setCacheSQL, key, payload, s.now().UTC().Add(ttl)); err != nil {
		return fmt.Errorf("set cache %s: %w", key, err)
	}
	return nil
}

// PurgeExpired deletes expired buckets with their samples, windows and cache rows.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	var total int64
	txErr := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{purgeSamplesSQL, purgeBucketsSQL, purgeWindowsSQL, purgeCacheSQL} {
			tag, err := tx.Exec(ctx, stmt, now)
			if err != nil {
				return err
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if txErr != nil {
		return 0, fmt.Errorf("purge expired: %w", txErr)
	}
	return total, nil
}

func scanBucketStats(rows pgx.Rows) (BucketStats, error) {
	var stats BucketStats
	if err := rows.Scan(
		&stats.Key,
		&stats.Origin,
		&stats.Destination,
		&stats.Month,
		&stats.SampleCount,
		&stats.MinPrice,
		&stats.PriceSum,
		&stats.FirstSeen,
		&stats.LastSeen,
		&stats.ExpiresAt,
	); err != nil {
		return BucketStats{}, fmt.Errorf("scan bucket stats: %w", err)
	}
	return stats, nil
}

var (
	_ Backend        = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
