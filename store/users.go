package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Users is the user repository. Every wallet or cooldown mutation goes through
// a single conditional UPDATE so concurrent operations on the same record
// cannot double-apply; guard failure is reported as ok=false, not an error.
type Users struct {
	db *gorm.DB
}

// NewUsers creates a user repository
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Get fetches a user by id
func (r *Users) Get(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrUserNotFound, "user not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load user")
	}
	return &user, nil
}

// GetOrCreate fetches a user, creating an empty record on first touch.
func (r *Users) GetOrCreate(ctx context.Context, id, username string) (*User, error) {
	user := User{ID: id, Username: username}
	err := r.db.WithContext(ctx).
		Where(User{ID: id}).
		Attrs(User{Username: username}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load or create user")
	}
	return &user, nil
}

// ClaimWheelSpin atomically credits the wheel reward and stamps the spin time,
// but only if the cooldown window has elapsed. Returns false when another spin
// inside the window already claimed it.
func (r *Users) ClaimWheelSpin(ctx context.Context, userID string, reward int64, now time.Time, window time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND (last_spin_time IS NULL OR last_spin_time <= ?)", userID, now.Add(-window)).
		Updates(map[string]interface{}{
			"wallet_balance": gorm.Expr("wallet_balance + ?", reward),
			"last_spin_time": now,
		})
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to claim wheel spin")
	}
	return res.RowsAffected == 1, nil
}

// ClaimSlotsPlay atomically stamps the slots play time if the cooldown window
// has elapsed. The stamp applies to wins and losses alike; the payout (a
// coupon) is recorded separately.
func (r *Users) ClaimSlotsPlay(ctx context.Context, userID string, now time.Time, window time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND (last_slots_time IS NULL OR last_slots_time <= ?)", userID, now.Add(-window)).
		Update("last_slots_time", now)
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to claim slots play")
	}
	return res.RowsAffected == 1, nil
}

// ApplyCheckIn commits a daily check-in: new streak value, check-in timestamp
// and the points credit in one guarded update. The guard is a null-safe
// compare against the previously observed timestamp, so two concurrent
// check-ins resolve to exactly one winner.
func (r *Users) ApplyCheckIn(ctx context.Context, userID string, prev *time.Time, now time.Time, streak int, points int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND last_check_in_time <=> ?", userID, prev).
		Updates(map[string]interface{}{
			"check_in_streak":    streak,
			"last_check_in_time": now,
			"wallet_balance":     gorm.Expr("wallet_balance + ?", points),
		})
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to apply check-in")
	}
	return res.RowsAffected == 1, nil
}

// SetReferrer records who invited the user, only if no referrer is set yet.
// The field is immutable after first set.
func (r *Users) SetReferrer(ctx context.Context, userID, referrerID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND referred_by IS NULL AND id <> ?", userID, referrerID).
		Update("referred_by", referrerID)
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to set referrer")
	}
	return res.RowsAffected == 1, nil
}
