package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Orders is the order repository.
type Orders struct {
	db *gorm.DB
}

// NewOrders creates an order repository
func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

// Create persists a new order with its line items
func (r *Orders) Create(ctx context.Context, order *Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to create order")
	}
	return nil
}

// Get fetches an order with its line items
func (r *Orders) Get(ctx context.Context, id int64) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrOrderNotFound, "order not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load order")
	}
	return &order, nil
}

// CountByUser counts a user's orders, excluding excludeOrderID when non-zero.
// The referral attributor uses this to confirm a first order at call time.
func (r *Orders) CountByUser(ctx context.Context, userID string, excludeOrderID int64) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&Order{}).Where("user_id = ?", userID)
	if excludeOrderID != 0 {
		q = q.Where("id <> ?", excludeOrderID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to count orders")
	}
	return count, nil
}

// UpdateStatus moves an order from one status to another in a single guarded
// update. The guard pins the current status, so a stale or repeated admin
// action affects zero rows instead of resurrecting a terminal order.
func (r *Orders) UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to update order status")
	}
	return res.RowsAffected == 1, nil
}
