package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/storage"
)

// PurgeObserver receives the number of rows each sweep removed.
type PurgeObserver interface {
	ObservePurge(removed int64)
}

// Sweeper reclaims expired price buckets, rate-limit windows and cache rows.
// With a lock provider only one instance sweeps per tick.
type Sweeper struct {
	purger   storage.Purger
	locker   storage.AdvisoryLocker
	lockKey  int64
	observer PurgeObserver
	logger   zerolog.Logger
}

// NewSweeper constructs a Sweeper. locker and observer may be nil.
func NewSweeper(purger storage.Purger, locker storage.AdvisoryLocker, lockKey int64, observer PurgeObserver, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		purger:   purger,
		locker:   locker,
		lockKey:  lockKey,
		observer: observer,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Sweep runs one purge. It returns 0 without error when another instance
// holds the lock.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.locker != nil {
		unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			s.logger.Debug().Msg("sweep lock held elsewhere; skipping")
			return 0, nil
		}
		defer unlock()
	}

	started := time.Now()
	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	if s.observer != nil {
		s.observer.ObservePurge(removed)
	}
	s.logger.Info().Int64("removed", removed).Dur("took", time.Since(started)).Msg("expired rows purged")
	return removed, nil
}

// Tick adapts Sweep to the scheduler loop.
func (s *Sweeper) Tick(ctx context.Context, _ time.Time) error {
	_, err := s.Sweep(ctx)
	return err
}
