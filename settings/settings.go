package settings

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/db/redis"
)

// Keys for runtime-tunable values. Operators set these through the admin bot;
// the engine only reads them.
const (
	KeySlotsWinRate    = "settings:slots_win_rate"
	KeySlotsPrizeLabel = "settings:slots_prize_label"
	KeySlotsPrizeCode  = "settings:slots_prize_code"
)

// Defaults used when a key is unset or unparsable.
const (
	DefaultSlotsWinRate    = 0.30
	DefaultSlotsPrizeLabel = "10% off your next order"
	DefaultSlotsPrizeCode  = "SLOTS10"
)

// KV is the minimal key-value read surface the store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
}

// Store reads runtime settings from Redis, falling back to defaults. A
// missing key is normal; a Redis failure is logged and also falls back, since
// a draw should not fail because a tunable could not be read.
type Store struct {
	kv     KV
	logger zerolog.Logger
}

// New creates a settings store
func New(kv KV, logger zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// SlotsWinRate returns the slots win probability in [0,1].
func (s *Store) SlotsWinRate(ctx context.Context) float64 {
	raw, err := s.kv.Get(ctx, KeySlotsWinRate)
	if err != nil {
		if !errors.Is(err, redis.ErrKeyMissing) {
			s.logger.Warn().Err(err).Str("key", KeySlotsWinRate).Msg("Failed to read setting, using default")
		}
		return DefaultSlotsWinRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		s.logger.Warn().Str("key", KeySlotsWinRate).Str("value", raw).Msg("Invalid win rate setting, using default")
		return DefaultSlotsWinRate
	}
	return rate
}

// SlotsPrize returns the coupon label/code pair awarded on a slots win.
func (s *Store) SlotsPrize(ctx context.Context) (label, code string) {
	label = s.stringOrDefault(ctx, KeySlotsPrizeLabel, DefaultSlotsPrizeLabel)
	code = s.stringOrDefault(ctx, KeySlotsPrizeCode, DefaultSlotsPrizeCode)
	return label, code
}

func (s *Store) stringOrDefault(ctx context.Context, key, fallback string) string {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrKeyMissing) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read setting, using default")
		}
		return fallback
	}
	if raw == "" {
		return fallback
	}
	return raw
}
