package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryBucket struct {
	stats   BucketStats
	samples []PriceSample
}

type memoryWindow struct {
	Window
	expiresAt time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore keeps all state in process memory. It is meant for development
// and single-instance deployments; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]*memoryBucket
	windows map[string]memoryWindow
	cache   map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty MemoryStore reading time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*memoryBucket),
		windows: make(map[string]memoryWindow),
		cache:   make(map[string]memoryEntry),
		now:     now,
	}
}

// AppendSample appends a sample and updates the bucket rollup under one lock.
func (ms *MemoryStore) AppendSample(ctx context.Context, sample PriceSample, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	observed := sample.ObservedAt.UTC()
	sample.ObservedAt = observed

	ms.mu.Lock()
	defer ms.mu.Unlock()

	b, ok := ms.buckets[sample.BucketKey]
	if !ok || !b.stats.ExpiresAt.After(observed) {
		b = &memoryBucket{stats: BucketStats{
			Key:         sample.BucketKey,
			Origin:      sample.Origin,
			Destination: sample.Destination,
			Month:       sample.Month,
			MinPrice:    sample.Price,
			FirstSeen:   observed,
		}}
		ms.buckets[sample.BucketKey] = b
	}

	b.samples = append(b.samples, sample)
	b.stats.SampleCount++
	b.stats.PriceSum += int64(sample.Price)
	if sample.Price < b.stats.MinPrice {
		b.stats.MinPrice = sample.Price
	}
	b.stats.LastSeen = observed
	b.stats.ExpiresAt = observed.Add(ttl)
	return nil
}

// BucketStats returns a copy of a live bucket's rollup, or nil.
func (ms *MemoryStore) BucketStats(ctx context.Context, key string) (*BucketStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	b, ok := ms.buckets[key]
	if !ok || !ms.live(b) {
		return nil, nil
	}
	stats := b.stats
	return &stats, nil
}

// ListRouteBuckets lists the live buckets of a route ordered by month.
func (ms *MemoryStore) ListRouteBuckets(ctx context.Context, origin, destination string) ([]BucketStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]BucketStats, 0)
	for _, b := range ms.buckets {
		if b.stats.Origin == origin && b.stats.Destination == destination && ms.live(b) {
			out = append(out, b.stats)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// RouteSamplesBetween lists samples of live buckets observed within [from, to].
func (ms *MemoryStore) RouteSamplesBetween(ctx context.Context, origin, destination string, from, to time.Time) ([]PriceSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]PriceSample, 0)
	for _, b := range ms.buckets {
		if b.stats.Origin != origin || b.stats.Destination != destination || !ms.live(b) {
			continue
		}
		for _, s := range b.samples {
			if s.ObservedAt.Before(from) || s.ObservedAt.After(to) {
				continue
			}
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out, nil
}

// HitWindow counts one request against a fixed window, resetting it once expired.
func (ms *MemoryStore) HitWindow(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}

	now = now.UTC()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, ok := ms.windows[key]
	if !ok || !w.expiresAt.After(now) {
		w = memoryWindow{Window: Window{Start: now}, expiresAt: now.Add(window)}
	}
	w.Hits++
	ms.windows[key] = w
	return w.Window, nil
}

// GetJSON decodes a live cache entry into dst. It reports false on a miss.
func (ms *MemoryStore) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ms.mu.RLock()
	entry, ok := ms.cache[key]
	ms.mu.RUnlock()

	if !ok || !entry.expiresAt.After(ms.now()) {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dst); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a JSON copy of value under key until ttl elapses.
func (ms *MemoryStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", key, err)
	}

	ms.mu.Lock()
	ms.cache[key] = memoryEntry{payload: payload, expiresAt: ms.now().Add(ttl)}
	ms.mu.Unlock()
	return nil
}

// PurgeExpired drops expired buckets, windows and cache entries.
func (ms *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := ms.now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var removed int64
	for key, b := range ms.buckets {
		if !b.stats.ExpiresAt.After(now) {
			removed += int64(len(b.samples)) + 1
			delete(ms.buckets, key)
		}
	}
	for key, w := range ms.windows {
		if !w.expiresAt.After(now) {
			removed++
			delete(ms.windows, key)
		}
	}
	for key, e := range ms.cache {
		if !e.expiresAt.After(now) {
			removed++
			delete(ms.cache, key)
		}
	}
	return removed, nil
}

// live must be called with the lock held.
func (ms *MemoryStore) live(b *memoryBucket) bool {
	return b.stats.ExpiresAt.After(ms.now())
}

var _ Backend = (*MemoryStore)(nil)
