package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	apperrors "github.com/telecart-dev/reward-engine/errors"
	"github.com/telecart-dev/reward-engine/store"
)

// FulfillmentUserStore resolves the buyer, creating the record on first
// contact.
type FulfillmentUserStore interface {
	GetOrCreate(ctx context.Context, id, username string) (*store.User, error)
}

// ProductCatalog reads catalog entries for order snapshotting.
type ProductCatalog interface {
	Get(ctx context.Context, id int64) (*store.Product, error)
}

// OrderStore persists orders and drives the status lifecycle.
type OrderStore interface {
	Create(ctx context.Context, order *store.Order) error
	Get(ctx context.Context, id int64) (*store.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to store.OrderStatus) (bool, error)
}

// PromoConsumer burns one usage of a promo code under its usage-cap guard.
type PromoConsumer interface {
	ConsumeUsage(ctx context.Context, code string) (bool, error)
}

// CartValidator checks a promo code against a cart total.
type CartValidator interface {
	Validate(ctx context.Context, code string, cartTotal int64, now time.Time) (*PromoResult, error)
}

// Reconciler applies stock decrements for committed line items.
type Reconciler interface {
	Reconcile(ctx context.Context, items []store.OrderItem) *ReconcileReport
}

// Attributor runs referral attribution for a committed order.
type Attributor interface {
	Attribute(ctx context.Context, order *store.Order, now time.Time) (*ReferralResult, error)
}

// Broadcaster fans a message out to the admin recipients.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string)
}

// FulfillmentEngine owns order placement and the order lifecycle. Placement
// snapshots catalog prices and titles into the order, so later product edits
// never change what was sold.
type FulfillmentEngine struct {
	users     FulfillmentUserStore
	products  ProductCatalog
	orders    OrderStore
	promos    PromoConsumer
	validator CartValidator
	stock     Reconciler
	referrals Attributor
	admins    Broadcaster
	logger    zerolog.Logger
}

// NewFulfillmentEngine creates a fulfillment engine
func NewFulfillmentEngine(
	users FulfillmentUserStore,
	products ProductCatalog,
	orders OrderStore,
	promos PromoConsumer,
	validator CartValidator,
	stock Reconciler,
	referrals Attributor,
	admins Broadcaster,
	logger zerolog.Logger,
) *FulfillmentEngine {
	return &FulfillmentEngine{
		users:     users,
		products:  products,
		orders:    orders,
		promos:    promos,
		validator: validator,
		stock:     stock,
		referrals: referrals,
		admins:    admins,
		logger:    logger.With().Str("component", "fulfillment").Logger(),
	}
}

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ProductID      int64    `json:"product_id" binding:"required"`
	Quantity       int64    `json:"quantity"`
	SelectedValues []string `json:"selected_values,omitempty"`
}

// PlaceOrderRequest is the placement input.
type PlaceOrderRequest struct {
	Items     []OrderLine `json:"items" binding:"required"`
	PromoCode string      `json:"promo_code,omitempty"`
	Username  string      `json:"username,omitempty"`
}

// PlaceOrder validates the cart, applies an optional promo code, persists the
// order snapshot, reconciles stock, and triggers the post-commit side effects
// (admin notification, referral attribution). The promo usage counter is
// consumed here, at commit, not during the earlier validation preview.
func (e *FulfillmentEngine) PlaceOrder(ctx context.Context, userID string, req *PlaceOrderRequest, now time.Time) (*store.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "order must contain at least one item")
	}

	if _, err := e.users.GetOrCreate(ctx, userID, req.Username); err != nil {
		return nil, err
	}

	items := make([]store.OrderItem, 0, len(req.Items))
	var total int64
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			line.Quantity = 1
		}
		product, err := e.products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		price := product.Price
		if len(line.SelectedValues) > 0 {
			if variation, ok := lo.Find(product.Variations, func(v store.Variation) bool {
				return lo.Contains(line.SelectedValues, v.Name)
			}); ok {
				price = variation.Price
			}
		}

		item := store.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  line.Quantity,
			Price:     price,
		}
		item.EncodeSelectedValues(line.SelectedValues)
		items = append(items, item)
		total += price * line.Quantity
	}

	var discount int64
	promoCode := strings.ToUpper(strings.TrimSpace(req.PromoCode))
	if promoCode != "" {
		result, err := e.validator.Validate(ctx, promoCode, total, now)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, apperrors.NewWithDebug(apperrors.ErrPromoInvalid, "promo code rejected", result.Reason)
		}
		ok, err := e.promos.ConsumeUsage(ctx, promoCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			// The usage cap filled up between validation and commit.
			return nil, apperrors.New(apperrors.ErrPromoInvalid, "promo code is no longer available")
		}
		discount = result.Discount
	}

	order := &store.Order{
		UserID:    userID,
		Items:     items,
		Total:     total,
		Discount:  discount,
		PromoCode: promoCode,
		Status:    store.OrderPending,
	}
	if err := e.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	report := e.stock.Reconcile(ctx, order.Items)
	e.logger.Info().
		Int64("order_id", order.ID).
		Str("user_id", userID).
		Int64("total", total).
		Int64("discount", discount).
		Int("stock_applied", report.Applied).
		Int("stock_skipped", report.Skipped).
		Msg("Order placed")

	e.admins.Broadcast(ctx, e.orderSummary(order))

	if _, err := e.referrals.Attribute(ctx, order, now); err != nil {
		// Attribution failure never voids the committed order.
		e.logger.Error().Err(err).Int64("order_id", order.ID).Msg("Referral attribution failed")
	}

	return order, nil
}

// GetOrder fetches one order with its line items.
func (e *FulfillmentEngine) GetOrder(ctx context.Context, orderID int64) (*store.Order, error) {
	return e.orders.Get(ctx, orderID)
}

// NotifyOrder re-broadcasts the order summary to admins and re-runs referral
// attribution. Repeating it is safe: the broadcast carries the same snapshot
// every time, and the award store's buyer-keyed dedup keeps attribution from
// crediting twice even when it failed at placement and succeeds here.
func (e *FulfillmentEngine) NotifyOrder(ctx context.Context, orderID int64, now time.Time) (*store.Order, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	e.admins.Broadcast(ctx, e.orderSummary(order))

	if _, err := e.referrals.Attribute(ctx, order, now); err != nil {
		e.logger.Error().Err(err).Int64("order_id", order.ID).Msg("Referral attribution failed")
	}
	return order, nil
}

// UpdateStatus moves an order along its one-way lifecycle. Illegal moves and
// moves raced by a concurrent change are both rejected with an invalid
// transition error.
func (e *FulfillmentEngine) UpdateStatus(ctx context.Context, orderID int64, next store.OrderStatus) (*store.Order, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, apperrors.NewWithDebug(
			apperrors.ErrInvalidTransition,
			"invalid order status transition",
			fmt.Sprintf("%s -> %s", order.Status, next),
		)
	}

	ok, err := e.orders.UpdateStatus(ctx, orderID, order.Status, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidTransition, "order status changed concurrently")
	}

	e.logger.Info().
		Int64("order_id", orderID).
		Str("from", string(order.Status)).
		Str("to", string(next)).
		Msg("Order status updated")

	order.Status = next
	return order, nil
}

func (e *FulfillmentEngine) orderSummary(order *store.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d from %s\n", order.ID, order.UserID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x%d @ %d", item.Title, item.Quantity, item.Price)
		if values := item.SelectedValues(); len(values) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(values, ", "))
		}
		b.WriteString("\n")
	}
	if order.Discount > 0 {
		fmt.Fprintf(&b, "Discount: %d (%s)\n", order.Discount, order.PromoCode)
	}
	fmt.Fprintf(&b, "Payable: %d", order.Total-order.Discount)
	return b.String()
}
