package store

import (
	"context"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Rewards is the append-only reward history repository.
type Rewards struct {
	db *gorm.DB
}

// NewRewards creates a reward history repository
func NewRewards(db *gorm.DB) *Rewards {
	return &Rewards{db: db}
}

// Append adds one history entry
func (r *Rewards) Append(ctx context.Context, entry *RewardEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to append reward entry")
	}
	return nil
}

// ListByUser returns the newest entries for a user, newest first.
func (r *Rewards) ListByUser(ctx context.Context, userID string, limit int) ([]RewardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []RewardEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to list reward history")
	}
	return entries, nil
}
