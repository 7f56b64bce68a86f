package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/telecart-dev/reward-engine/store"
)

// Promo rejection reasons. These are normal outcomes carried in the result,
// not errors.
const (
	PromoReasonNotFound      = "code not found"
	PromoReasonInactive      = "code is inactive"
	PromoReasonExpired       = "code has expired"
	PromoReasonUsageExceeded = "code usage limit reached"
	PromoReasonBelowMinSpend = "cart total below minimum spend"
)

// PromoStore is the promo lookup surface the validator needs.
type PromoStore interface {
	FindByCode(ctx context.Context, code string) (*store.PromoCode, error)
}

// PromoValidator computes promo eligibility and discounts. It is stateless:
// consuming a usage slot is the order-commit flow's job, not the validator's.
type PromoValidator struct {
	promos PromoStore
	logger zerolog.Logger
}

// NewPromoValidator creates a promo validator
func NewPromoValidator(promos PromoStore, logger zerolog.Logger) *PromoValidator {
	return &PromoValidator{
		promos: promos,
		logger: logger.With().Str("component", "promo-validator").Logger(),
	}
}

// PromoResult is a validation outcome.
type PromoResult struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// Validate checks the code against the cart total at the given instant.
// Expiry is re-checked against `now` even when IsActive is still true, since
// the cleanup job that flips the flag runs on a schedule.
func (v *PromoValidator) Validate(ctx context.Context, code string, cartTotal int64, now time.Time) (*PromoResult, error) {
	promo, err := v.promos.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return rejected(PromoReasonNotFound, cartTotal), nil
	}
	if !promo.IsActive {
		return rejected(PromoReasonInactive, cartTotal), nil
	}
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(now) {
		return rejected(PromoReasonExpired, cartTotal), nil
	}
	if promo.MaxUsage != nil && promo.UsedCount >= *promo.MaxUsage {
		return rejected(PromoReasonUsageExceeded, cartTotal), nil
	}
	if cartTotal < promo.MinSpend {
		return rejected(PromoReasonBelowMinSpend, cartTotal), nil
	}

	discount := computeDiscount(promo, cartTotal)
	return &PromoResult{
		Valid:    true,
		Discount: discount,
		Total:    cartTotal - discount,
	}, nil
}

func rejected(reason string, cartTotal int64) *PromoResult {
	return &PromoResult{Valid: false, Reason: reason, Total: cartTotal}
}

// computeDiscount evaluates the discount and clamps it to the cart total, so
// a promo can never drive an order negative. Percent discounts floor to whole
// units.
func computeDiscount(promo *store.PromoCode, cartTotal int64) int64 {
	var discount int64
	switch promo.Type {
	case store.PromoPercent:
		discount = decimal.NewFromInt(cartTotal).
			Mul(promo.Value).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	default:
		discount = promo.Value.Floor().IntPart()
	}
	if discount < 0 {
		discount = 0
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	return discount
}
