// Package jobs runs the periodic engine maintenance tasks: flash-sale
// rotation and expired-promo cleanup.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/engine"
)

const rotationLockKey = "jobs:rotation:lock"

// Locker is the distributed once-lock used to keep multiple engine instances
// from running the same job tick. SetNX must be atomic.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// Runner drives the scheduled jobs on a fixed interval. Each tick takes the
// rotation lock first, so only one instance per interval does the work.
type Runner struct {
	rotator  *engine.ScarcityRotator
	locker   Locker
	interval time.Duration
	logger   zerolog.Logger
}

// NewRunner creates a job runner. A nil locker disables leader election and
// every tick runs locally, which is fine for single-instance deployments.
func NewRunner(rotator *engine.ScarcityRotator, locker Locker, interval time.Duration, logger zerolog.Logger) *Runner {
	return &Runner{
		rotator:  rotator,
		locker:   locker,
		interval: interval,
		logger:   logger.With().Str("component", "jobs").Logger(),
	}
}

// Run blocks until ctx is cancelled, firing one tick per interval. The first
// tick runs immediately on start.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("Job runner started")

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Job runner stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if !r.acquireLock(ctx) {
		r.logger.Debug().Msg("Rotation lock held elsewhere, skipping tick")
		return
	}

	now := time.Now()

	if _, err := r.rotator.Rotate(ctx, now); err != nil {
		r.logger.Error().Err(err).Msg("Flash sale rotation failed")
	}
	if _, err := r.rotator.CleanupPromos(ctx, now); err != nil {
		r.logger.Error().Err(err).Msg("Promo cleanup failed")
	}
}

// acquireLock takes the per-tick rotation lock. The lock expires just under
// one interval so a crashed holder never blocks the next tick.
func (r *Runner) acquireLock(ctx context.Context) bool {
	if r.locker == nil {
		return true
	}

	ttl := r.interval - time.Minute
	if ttl <= 0 {
		ttl = r.interval
	}

	ok, err := r.locker.SetNX(ctx, rotationLockKey, time.Now().Unix(), ttl)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to acquire rotation lock")
		return false
	}
	return ok
}
