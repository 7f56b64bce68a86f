package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Referrals persists referral awards. The award insert, the referrer's wallet
// credit and the history entry commit in one transaction keyed on the buyer
// id, so retried notifications for the same first order credit exactly once.
type Referrals struct {
	db *gorm.DB
}

// NewReferrals creates a referral award repository
func NewReferrals(db *gorm.DB) *Referrals {
	return &Referrals{db: db}
}

// Award credits the referrer for the buyer's first order. Returns false when
// the buyer has already been credited (duplicate-key on buyer_id).
func (r *Referrals) Award(ctx context.Context, buyerID, referrerID string, orderID, amount int64, now time.Time) (bool, error) {
	awarded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		award := ReferralAward{
			BuyerID:    buyerID,
			ReferrerID: referrerID,
			OrderID:    orderID,
			Amount:     amount,
			CreatedAt:  now,
		}
		if err := tx.Create(&award).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Already credited for this buyer; roll back silently.
				return err
			}
			return err
		}

		res := tx.Model(&User{}).
			Where("id = ?", referrerID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		entry := RewardEntry{
			UserID:    referrerID,
			Kind:      RewardReferralBonus,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		awarded = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.New(apperrors.ErrUserNotFound, "referrer not found")
		}
		return false, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to credit referral")
	}
	return awarded, nil
}

// IsAwarded reports whether a buyer's first order has already been credited.
func (r *Referrals) IsAwarded(ctx context.Context, buyerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ReferralAward{}).
		Where("buyer_id = ?", buyerID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to check referral award")
	}
	return count > 0, nil
}
