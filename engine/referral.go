package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/telecart-dev/reward-engine/errors"
	"github.com/telecart-dev/reward-engine/notify"
	"github.com/telecart-dev/reward-engine/store"
)

// DefaultReferralBonus is the amount credited to a referrer when the user
// they invited completes a first order.
const DefaultReferralBonus = 200

// ReferralUserStore is the user surface the attributor needs. SetReferrer is
// a guarded first-write: it reports false once a referrer is already set.
type ReferralUserStore interface {
	Get(ctx context.Context, id string) (*store.User, error)
	GetOrCreate(ctx context.Context, id, username string) (*store.User, error)
	SetReferrer(ctx context.Context, userID, referrerID string) (bool, error)
}

// OrderCounter counts a user's orders, excluding a given order id.
type OrderCounter interface {
	CountByUser(ctx context.Context, userID string, excludeOrderID int64) (int64, error)
}

// AwardStore commits a referral award at most once per buyer. Award returns
// false when the buyer has already been credited.
type AwardStore interface {
	Award(ctx context.Context, buyerID, referrerID string, orderID, amount int64, now time.Time) (bool, error)
	IsAwarded(ctx context.Context, buyerID string) (bool, error)
}

// ReferralAttributor records referral links and credits a referrer when the
// invited buyer's first order is confirmed. Attribution runs at placement and
// again on every re-notify, so it verifies the first-order condition itself
// and relies on the award store's buyer-keyed dedup to stay idempotent.
type ReferralAttributor struct {
	users    ReferralUserStore
	orders   OrderCounter
	awards   AwardStore
	notifier notify.Notifier
	bonus    int64
	logger   zerolog.Logger
}

// NewReferralAttributor creates a referral attributor. A zero bonus falls
// back to the default.
func NewReferralAttributor(users ReferralUserStore, orders OrderCounter, awards AwardStore, notifier notify.Notifier, bonus int64, logger zerolog.Logger) *ReferralAttributor {
	if bonus == 0 {
		bonus = DefaultReferralBonus
	}
	return &ReferralAttributor{
		users:    users,
		orders:   orders,
		awards:   awards,
		notifier: notifier,
		bonus:    bonus,
		logger:   logger.With().Str("component", "referral-attributor").Logger(),
	}
}

// AttachResult is the outcome of a referral link attempt.
type AttachResult struct {
	Linked     bool   `json:"linked"`
	ReferrerID string `json:"referrer_id,omitempty"`
}

// Attach records the inviter for a user on first contact, creating the user
// record when needed. The link is first-write-wins: a user who already has a
// referrer keeps it, reported as a normal Linked=false outcome. Self-referral
// and unknown referrers are errors.
func (a *ReferralAttributor) Attach(ctx context.Context, userID, username, referrerID string) (*AttachResult, error) {
	if referrerID == "" || referrerID == userID {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "invalid referrer")
	}
	if _, err := a.users.Get(ctx, referrerID); err != nil {
		return nil, err
	}
	if _, err := a.users.GetOrCreate(ctx, userID, username); err != nil {
		return nil, err
	}

	linked, err := a.users.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return nil, err
	}
	if linked {
		a.logger.Info().
			Str("user_id", userID).
			Str("referrer_id", referrerID).
			Msg("Referral link recorded")
	}
	return &AttachResult{Linked: linked, ReferrerID: referrerID}, nil
}

// ReferralResult is the outcome of an attribution attempt.
type ReferralResult struct {
	Awarded    bool   `json:"awarded"`
	ReferrerID string `json:"referrer_id,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
}

// Attribute inspects the notified order and credits the buyer's referrer if
// this is the buyer's first order. Safe to call repeatedly for the same
// order; only the first call credits.
func (a *ReferralAttributor) Attribute(ctx context.Context, order *store.Order, now time.Time) (*ReferralResult, error) {
	buyer, err := a.users.Get(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	if buyer.ReferredBy == nil || *buyer.ReferredBy == "" {
		return &ReferralResult{}, nil
	}

	already, err := a.awards.IsAwarded(ctx, buyer.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return &ReferralResult{ReferrerID: *buyer.ReferredBy}, nil
	}

	prior, err := a.orders.CountByUser(ctx, buyer.ID, order.ID)
	if err != nil {
		return nil, err
	}
	if prior > 0 {
		return &ReferralResult{}, nil
	}

	referrerID := *buyer.ReferredBy
	awarded, err := a.awards.Award(ctx, buyer.ID, referrerID, order.ID, a.bonus, now)
	if err != nil {
		return nil, err
	}
	if !awarded {
		return &ReferralResult{ReferrerID: referrerID}, nil
	}

	a.logger.Info().
		Str("buyer_id", buyer.ID).
		Str("referrer_id", referrerID).
		Int64("amount", a.bonus).
		Msg("Referral bonus credited")

	// Best-effort; a failed notification never rolls back the credit.
	a.notifier.Notify(ctx, referrerID,
		fmt.Sprintf("🎉 Your referral placed their first order! %d credits were added to your wallet.", a.bonus))

	return &ReferralResult{Awarded: true, ReferrerID: referrerID, Amount: a.bonus}, nil
}
