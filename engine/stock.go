package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/telecart-dev/reward-engine/store"
)

// ProductStockStore is the product surface the reconciler needs. Decrements
// clamp at zero inside the store, never underflowing.
type ProductStockStore interface {
	Get(ctx context.Context, id int64) (*store.Product, error)
	DecrementStock(ctx context.Context, productID, qty int64) error
	DecrementVariationStock(ctx context.Context, variationID, qty int64) error
}

// StockReconciler applies an order's line items against inventory. Each item
// applies or skips independently: one vanished product must not abort its
// siblings or fail the order.
type StockReconciler struct {
	products ProductStockStore
	logger   zerolog.Logger
}

// NewStockReconciler creates a stock reconciler
func NewStockReconciler(products ProductStockStore, logger zerolog.Logger) *StockReconciler {
	return &StockReconciler{
		products: products,
		logger:   logger.With().Str("component", "stock-reconciler").Logger(),
	}
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Reconcile decrements stock for every line item. When the product has
// variations and the item carries a selection, the first variation whose name
// appears among the selected values wins; otherwise the base stock is used.
// Selections spanning multiple variant axes resolve to the first textual
// match, a known limitation of the free-form selection format.
func (r *StockReconciler) Reconcile(ctx context.Context, items []store.OrderItem) *ReconcileReport {
	report := &ReconcileReport{}

	for _, item := range items {
		if err := r.reconcileItem(ctx, &item); err != nil {
			r.logger.Warn().
				Err(err).
				Int64("product_id", item.ProductID).
				Int64("quantity", item.Quantity).
				Msg("Skipping line item")
			report.Skipped++
			continue
		}
		report.Applied++
	}

	return report
}

func (r *StockReconciler) reconcileItem(ctx context.Context, item *store.OrderItem) error {
	product, err := r.products.Get(ctx, item.ProductID)
	if err != nil {
		return err
	}

	selected := item.SelectedValues()
	if len(product.Variations) > 0 && len(selected) > 0 {
		variation, found := lo.Find(product.Variations, func(v store.Variation) bool {
			return lo.Contains(selected, v.Name)
		})
		if found {
			return r.products.DecrementVariationStock(ctx, variation.ID, item.Quantity)
		}
	}

	return r.products.DecrementStock(ctx, product.ID, item.Quantity)
}
