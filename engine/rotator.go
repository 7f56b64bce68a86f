package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/telecart-dev/reward-engine/store"
)

// Flash-sale rotation defaults.
const (
	DefaultFlashSaleMinPrice = 500
	DefaultFlashSaleDuration = 4 * time.Hour
	rotationMinCount         = 5
	rotationMaxCount         = 10
)

// FlashSaleStore is the product surface the rotator needs. SampleEligible
// must sample uniformly over in-stock products priced above minPrice.
type FlashSaleStore interface {
	ResetFlashSales(ctx context.Context) error
	SampleEligible(ctx context.Context, minPrice int64, limit int) ([]store.Product, error)
	MarkFlashSale(ctx context.Context, ids []int64, until time.Time) error
}

// PromoJanitor deactivates expired promo codes.
type PromoJanitor interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// ScarcityRotator is the periodic batch job behind flash sales. Each run
// clears every flag before re-selecting, so a run has no memory of previous
// rotations and re-running it is harmless. The admin endpoint and the job
// runner can both trigger a run, so rng access goes through mu.
type ScarcityRotator struct {
	products FlashSaleStore
	promos   PromoJanitor
	minPrice int64
	duration time.Duration
	logger   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScarcityRotator creates a rotator. Zero minPrice/duration fall back to
// the defaults.
func NewScarcityRotator(products FlashSaleStore, promos PromoJanitor, rng *rand.Rand, minPrice int64, duration time.Duration, logger zerolog.Logger) *ScarcityRotator {
	if minPrice == 0 {
		minPrice = DefaultFlashSaleMinPrice
	}
	if duration == 0 {
		duration = DefaultFlashSaleDuration
	}
	return &ScarcityRotator{
		products: products,
		promos:   promos,
		rng:      rng,
		minPrice: minPrice,
		duration: duration,
		logger:   logger.With().Str("component", "scarcity-rotator").Logger(),
	}
}

// RotationReport summarizes one rotation run.
type RotationReport struct {
	Selected int       `json:"selected"`
	EndsAt   time.Time `json:"ends_at"`
}

// Rotate resets all flash-sale flags, then marks a random subset of eligible
// products (count uniform in [5,10], fewer when fewer are eligible) on sale
// until now plus the configured duration.
func (r *ScarcityRotator) Rotate(ctx context.Context, now time.Time) (*RotationReport, error) {
	if err := r.products.ResetFlashSales(ctx); err != nil {
		return nil, err
	}

	count := r.drawCount()
	sample, err := r.products.SampleEligible(ctx, r.minPrice, count)
	if err != nil {
		return nil, err
	}

	until := now.Add(r.duration)
	ids := lo.Map(sample, func(p store.Product, _ int) int64 { return p.ID })
	if err := r.products.MarkFlashSale(ctx, ids, until); err != nil {
		return nil, err
	}

	r.logger.Info().
		Int("selected", len(ids)).
		Time("ends_at", until).
		Msg("Flash sale rotation complete")

	return &RotationReport{Selected: len(ids), EndsAt: until}, nil
}

// drawCount rolls the rotation size, uniform in [rotationMinCount, rotationMaxCount].
func (r *ScarcityRotator) drawCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rotationMinCount + r.rng.Intn(rotationMaxCount-rotationMinCount+1)
}

// CleanupPromos deactivates promo codes whose expiry has passed.
func (r *ScarcityRotator) CleanupPromos(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.promos.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info().Int64("deactivated", n).Msg("Expired promo codes deactivated")
	}
	return n, nil
}
