package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Promos is the promo-code repository. Usage accounting runs as a guarded
// increment so the max-usage cap holds under concurrent order commits.
type Promos struct {
	db *gorm.DB
}

// NewPromos creates a promo-code repository
func NewPromos(db *gorm.DB) *Promos {
	return &Promos{db: db}
}

// FindByCode looks a promo up case-insensitively. A missing code returns
// (nil, nil); the validator turns that into a rejected outcome, not an error.
func (r *Promos) FindByCode(ctx context.Context, code string) (*PromoCode, error) {
	var promo PromoCode
	err := r.db.WithContext(ctx).First(&promo, "code = ?", strings.ToUpper(strings.TrimSpace(code))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load promo code")
	}
	return &promo, nil
}

// Create persists a promo code, normalizing it to uppercase.
func (r *Promos) Create(ctx context.Context, promo *PromoCode) error {
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if err := r.db.WithContext(ctx).Create(promo).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to create promo code")
	}
	return nil
}

// ConsumeUsage increments used_count only while the code is active and under
// its usage cap. Returns false when the cap is already reached or the code
// went inactive, which callers treat as a normal rejection.
func (r *Promos) ConsumeUsage(ctx context.Context, code string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&PromoCode{}).
		Where("code = ? AND is_active = ? AND (max_usage IS NULL OR used_count < max_usage)",
			strings.ToUpper(strings.TrimSpace(code)), true).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to consume promo usage")
	}
	return res.RowsAffected == 1, nil
}

// DeactivateExpired flips is_active off for every code whose expiry has
// passed. Run by the periodic cleanup job; the validator still re-checks
// expiry itself in case a code is read between expiry and cleanup.
func (r *Promos) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&PromoCode{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		return 0, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to deactivate expired promos")
	}
	return res.RowsAffected, nil
}
