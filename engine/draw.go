package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/store"
)

// Default cooldown windows for the two draw types.
const (
	DefaultWheelCooldown = 24 * time.Hour
	DefaultSlotsCooldown = 12 * time.Hour
)

// slotIcons is the fixed reel icon set.
var slotIcons = []string{"🍒", "🍋", "🍇", "💎", "7️⃣", "🔔"}

// wheelTier is one payout bracket: everything below Cut (cumulative, out of
// 100) that wasn't claimed by an earlier tier, paying a uniform integer in
// [Min, Max].
type wheelTier struct {
	Cut      float64
	Min, Max int64
}

var wheelTiers = []wheelTier{
	{Cut: 60, Min: 5, Max: 25},
	{Cut: 85, Min: 26, Max: 100},
	{Cut: 95, Min: 101, Max: 250},
	{Cut: 99, Min: 251, Max: 500},
	{Cut: 100, Min: 501, Max: 2500},
}

// DrawUserStore is the user state surface the draw engine needs. The Claim
// methods are conditional updates: they mutate only if the cooldown window
// has elapsed and report the guard outcome.
type DrawUserStore interface {
	Get(ctx context.Context, id string) (*store.User, error)
	ClaimWheelSpin(ctx context.Context, userID string, reward int64, now time.Time, window time.Duration) (bool, error)
	ClaimSlotsPlay(ctx context.Context, userID string, now time.Time, window time.Duration) (bool, error)
}

// RewardLog appends to a user's reward history.
type RewardLog interface {
	Append(ctx context.Context, entry *store.RewardEntry) error
}

// SlotsSettings exposes the runtime-tunable slots parameters.
type SlotsSettings interface {
	SlotsWinRate(ctx context.Context) float64
	SlotsPrize(ctx context.Context) (label, code string)
}

// DrawEngine runs the wheel and slots minigames. One engine serves all
// requests, so access to rng is serialized through mu; rand.Rand is not safe
// for concurrent use.
type DrawEngine struct {
	users    DrawUserStore
	rewards  RewardLog
	settings SlotsSettings

	mu  sync.Mutex
	rng *rand.Rand

	wheelCooldown time.Duration
	slotsCooldown time.Duration

	logger zerolog.Logger
}

// NewDrawEngine creates a draw engine. Zero cooldowns fall back to the
// defaults (wheel 24h, slots 12h).
func NewDrawEngine(users DrawUserStore, rewards RewardLog, settings SlotsSettings, rng *rand.Rand, wheelCooldown, slotsCooldown time.Duration, logger zerolog.Logger) *DrawEngine {
	if wheelCooldown == 0 {
		wheelCooldown = DefaultWheelCooldown
	}
	if slotsCooldown == 0 {
		slotsCooldown = DefaultSlotsCooldown
	}
	return &DrawEngine{
		users:         users,
		rewards:       rewards,
		settings:      settings,
		rng:           rng,
		wheelCooldown: wheelCooldown,
		slotsCooldown: slotsCooldown,
		logger:        logger.With().Str("component", "draw-engine").Logger(),
	}
}

// WheelResult is the outcome of a wheel spin attempt.
type WheelResult struct {
	Blocked   bool  `json:"blocked"`
	WaitHours int   `json:"wait_hours,omitempty"`
	Tier      int   `json:"tier,omitempty"`
	Reward    int64 `json:"reward,omitempty"`
}

// SpinWheel performs one wheel draw for the user at the given instant. A spin
// inside the cooldown window is a normal rejected outcome, not an error, and
// mutates nothing.
func (e *DrawEngine) SpinWheel(ctx context.Context, userID string, now time.Time) (*WheelResult, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if hours, active := cooldownRemaining(now, user.LastSpinTime, e.wheelCooldown); active {
		return &WheelResult{Blocked: true, WaitHours: hours}, nil
	}

	tier, reward := e.drawWheelPrize()

	ok, err := e.users.ClaimWheelSpin(ctx, userID, reward, now, e.wheelCooldown)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent spin claimed the window between our read and the
		// guarded update. Re-read to report an accurate wait.
		fresh, err := e.users.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		hours, _ := cooldownRemaining(now, fresh.LastSpinTime, e.wheelCooldown)
		return &WheelResult{Blocked: true, WaitHours: hours}, nil
	}

	entry := &store.RewardEntry{
		UserID:    userID,
		Kind:      store.RewardWheelSpin,
		Amount:    reward,
		CreatedAt: now,
	}
	if err := e.rewards.Append(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("user_id", userID).
		Int("tier", tier).
		Int64("reward", reward).
		Msg("Wheel spin won")

	return &WheelResult{Tier: tier, Reward: reward}, nil
}

// drawWheelPrize maps a uniform value in [0,100) to a tier by cumulative cut
// points, then draws a uniform integer reward within the tier's inclusive
// bounds.
func (e *DrawEngine) drawWheelPrize() (tier int, reward int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.rng.Float64() * 100
	for i, t := range wheelTiers {
		if r < t.Cut {
			return i + 1, t.Min + e.rng.Int63n(t.Max-t.Min+1)
		}
	}
	// Unreachable: the last cut is 100 and Float64 < 1.
	last := wheelTiers[len(wheelTiers)-1]
	return len(wheelTiers), last.Min + e.rng.Int63n(last.Max-last.Min+1)
}

// SlotsResult is the outcome of a slots play attempt.
type SlotsResult struct {
	Blocked     bool      `json:"blocked"`
	WaitHours   int       `json:"wait_hours,omitempty"`
	Reels       [3]string `json:"reels,omitempty"`
	Win         bool      `json:"win"`
	CouponLabel string    `json:"coupon_label,omitempty"`
	CouponCode  string    `json:"coupon_code,omitempty"`
}

// PlaySlots performs one slots play. The play timestamp is claimed atomically
// before the outcome is drawn, so the cooldown applies to wins and losses
// alike; only wins append a history entry (the prize is a coupon, not
// currency, so the wallet is untouched).
func (e *DrawEngine) PlaySlots(ctx context.Context, userID string, now time.Time) (*SlotsResult, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if hours, active := cooldownRemaining(now, user.LastSlotsTime, e.slotsCooldown); active {
		return &SlotsResult{Blocked: true, WaitHours: hours}, nil
	}

	ok, err := e.users.ClaimSlotsPlay(ctx, userID, now, e.slotsCooldown)
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := e.users.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		hours, _ := cooldownRemaining(now, fresh.LastSlotsTime, e.slotsCooldown)
		return &SlotsResult{Blocked: true, WaitHours: hours}, nil
	}

	winRate := e.settings.SlotsWinRate(ctx)
	if win, icon := e.drawSlotsOutcome(winRate); win {
		label, code := e.settings.SlotsPrize(ctx)

		entry := &store.RewardEntry{
			UserID:      userID,
			Kind:        store.RewardSlotsCoupon,
			Amount:      0,
			CouponLabel: label,
			CouponCode:  code,
			CreatedAt:   now,
		}
		if err := e.rewards.Append(ctx, entry); err != nil {
			return nil, err
		}

		e.logger.Info().
			Str("user_id", userID).
			Str("coupon_code", code).
			Msg("Slots win")

		return &SlotsResult{
			Reels:       [3]string{icon, icon, icon},
			Win:         true,
			CouponLabel: label,
			CouponCode:  code,
		}, nil
	}

	return &SlotsResult{Reels: e.drawLosingReels(), Win: false}, nil
}

// drawSlotsOutcome rolls the win check and, on a win, the matching icon.
func (e *DrawEngine) drawSlotsOutcome(winRate float64) (win bool, icon string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rng.Float64() >= winRate {
		return false, ""
	}
	return true, slotIcons[e.rng.Intn(len(slotIcons))]
}

// drawLosingReels produces three reels that are guaranteed not to all match:
// the second reel is forced to differ from the first by construction.
func (e *DrawEngine) drawLosingReels() [3]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(slotIcons)
	first := e.rng.Intn(n)
	second := (first + 1 + e.rng.Intn(n-1)) % n
	third := e.rng.Intn(n)
	return [3]string{slotIcons[first], slotIcons[second], slotIcons[third]}
}
