package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/telecart-dev/reward-engine/errors"
)

// Products is the product repository. Stock decrements clamp at zero inside
// the UPDATE itself, so two simultaneous orders can never drive a count
// negative, and flash-sale flags are flipped in bulk statements rather than
// full-document writes.
type Products struct {
	db *gorm.DB
}

// NewProducts creates a product repository
func NewProducts(db *gorm.DB) *Products {
	return &Products{db: db}
}

// Get fetches a product with its variations in authored order
func (r *Products) Get(ctx context.Context, id int64) (*Product, error) {
	var product Product
	err := r.db.WithContext(ctx).
		Preload("Variations", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrProductNotFound, "product not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load product")
	}
	return &product, nil
}

// DecrementStock reduces a product's base stock by qty, clamped at zero.
func (r *Products) DecrementStock(ctx context.Context, productID, qty int64) error {
	res := r.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("GREATEST(stock - ?, 0)", qty))
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to decrement stock")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrProductNotFound, "product not found")
	}
	return nil
}

// DecrementVariationStock reduces a variation's stock by qty, clamped at zero.
func (r *Products) DecrementVariationStock(ctx context.Context, variationID, qty int64) error {
	res := r.db.WithContext(ctx).Model(&Variation{}).
		Where("id = ?", variationID).
		Update("stock", gorm.Expr("GREATEST(stock - ?, 0)", qty))
	if res.Error != nil {
		return apperrors.Wrap(res.Error, apperrors.ErrStoreError, "failed to decrement variation stock")
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrProductNotFound, "variation not found")
	}
	return nil
}

// ResetFlashSales clears every flash-sale flag. Each rotation run starts from
// a clean slate, which is what makes rotation idempotent per invocation.
func (r *Products) ResetFlashSales(ctx context.Context) error {
	err := r.db.WithContext(ctx).Model(&Product{}).
		Where("is_flash_sale = ? OR flash_sale_end_time IS NOT NULL", true).
		Updates(map[string]interface{}{
			"is_flash_sale":       false,
			"flash_sale_end_time": nil,
		}).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to reset flash sales")
	}
	return nil
}

// SampleEligible returns up to limit in-stock products priced above minPrice,
// uniformly sampled.
func (r *Products) SampleEligible(ctx context.Context, minPrice int64, limit int) ([]Product, error) {
	var products []Product
	err := r.db.WithContext(ctx).
		Where("stock > 0 AND price > ?", minPrice).
		Order("RAND()").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to sample products")
	}
	return products, nil
}

// MarkFlashSale flags the given products until the given time.
func (r *Products) MarkFlashSale(ctx context.Context, ids []int64, until time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&Product{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"is_flash_sale":       true,
			"flash_sale_end_time": until,
		}).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to mark flash sales")
	}
	return nil
}
