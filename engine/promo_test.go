package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/telecart-dev/reward-engine/store"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestValidator(promos ...*store.PromoCode) *PromoValidator {
	return NewPromoValidator(newFakePromos(promos...), zerolog.Nop())
}

func TestValidatePercentDiscount(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:     "FLASH10",
		Type:     store.PromoPercent,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	})

	result, err := v.Validate(context.Background(), "FLASH10", 1000, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("rejected: %s", result.Reason)
	}
	if result.Discount != 100 {
		t.Errorf("discount = %d, want 100", result.Discount)
	}
	if result.Total != 900 {
		t.Errorf("total = %d, want 900", result.Total)
	}
}

func TestValidatePercentDiscountFloors(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:     "ODD",
		Type:     store.PromoPercent,
		Value:    decimal.NewFromInt(15),
		IsActive: true,
	})

	// 15% of 333 is 49.95, floored to 49.
	result, err := v.Validate(context.Background(), "ODD", 333, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Discount != 49 {
		t.Errorf("discount = %d, want 49", result.Discount)
	}
}

func TestValidateFixedDiscountClamped(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:     "BIG",
		Type:     store.PromoFixed,
		Value:    decimal.NewFromInt(500),
		IsActive: true,
	})

	result, err := v.Validate(context.Background(), "BIG", 300, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("rejected: %s", result.Reason)
	}
	if result.Discount != 300 {
		t.Errorf("discount = %d, want clamped to 300", result.Discount)
	}
	if result.Total != 0 {
		t.Errorf("total = %d, want 0", result.Total)
	}
}

func TestValidateBelowMinSpend(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:     "WELCOME100",
		Type:     store.PromoFixed,
		Value:    decimal.NewFromInt(100),
		MinSpend: 500,
		IsActive: true,
	})

	result, err := v.Validate(context.Background(), "WELCOME100", 400, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Valid {
		t.Fatal("cart below minimum spend should be rejected")
	}
	if result.Reason != PromoReasonBelowMinSpend {
		t.Errorf("reason = %q, want %q", result.Reason, PromoReasonBelowMinSpend)
	}
	if result.Total != 400 {
		t.Errorf("rejected total = %d, want undiscounted 400", result.Total)
	}
}

func TestValidateExpiredDespiteActiveFlag(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	v := newTestValidator(&store.PromoCode{
		Code:      "OLD",
		Type:      store.PromoFixed,
		Value:     decimal.NewFromInt(50),
		ExpiresAt: &expired,
		IsActive:  true, // cleanup job has not run yet
	})

	result, err := v.Validate(context.Background(), "OLD", 1000, now)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expired code accepted")
	}
	if result.Reason != PromoReasonExpired {
		t.Errorf("reason = %q, want %q", result.Reason, PromoReasonExpired)
	}
}

func TestValidateUsageExhausted(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:      "LIMITED",
		Type:      store.PromoFixed,
		Value:     decimal.NewFromInt(50),
		MaxUsage:  int64Ptr(100),
		UsedCount: 100,
		IsActive:  true,
	})

	result, err := v.Validate(context.Background(), "LIMITED", 1000, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Valid {
		t.Fatal("exhausted code accepted")
	}
	if result.Reason != PromoReasonUsageExceeded {
		t.Errorf("reason = %q, want %q", result.Reason, PromoReasonUsageExceeded)
	}
}

func TestValidateInactive(t *testing.T) {
	v := newTestValidator(&store.PromoCode{
		Code:     "DISABLED",
		Type:     store.PromoFixed,
		Value:    decimal.NewFromInt(50),
		IsActive: false,
	})

	result, err := v.Validate(context.Background(), "DISABLED", 1000, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Valid {
		t.Fatal("inactive code accepted")
	}
	if result.Reason != PromoReasonInactive {
		t.Errorf("reason = %q, want %q", result.Reason, PromoReasonInactive)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	v := newTestValidator()

	result, err := v.Validate(context.Background(), "NOPE", 1000, time.Now())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Valid {
		t.Fatal("unknown code accepted")
	}
	if result.Reason != PromoReasonNotFound {
		t.Errorf("reason = %q, want %q", result.Reason, PromoReasonNotFound)
	}
}
