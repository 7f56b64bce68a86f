package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/auth"
	"github.com/telecart-dev/reward-engine/engine"
	"github.com/telecart-dev/reward-engine/errors"
	"github.com/telecart-dev/reward-engine/store"
)

// OrderHandler handles order placement and the order lifecycle endpoints.
type OrderHandler struct {
	fulfillment *engine.FulfillmentEngine
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(fulfillment *engine.FulfillmentEngine, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		fulfillment: fulfillment,
		logger:      logger.With().Str("handler", "order").Logger(),
	}
}

func orderIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.ErrInvalidRequest, "invalid order id")
	}
	return id, nil
}

// Place creates a new order for the caller.
func (h *OrderHandler) Place(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	var req engine.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}
	if req.Username == "" {
		req.Username, _ = auth.GetUsername(c)
	}

	order, err := h.fulfillment.PlaceOrder(ctx, userID, &req, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Order placement failed")
		HandleAppError(c, err)
		return
	}

	Created(c, order)
}

// Get returns one order with its line items. Callers can only read their own
// orders.
func (h *OrderHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	id, err := orderIDParam(c)
	if err != nil {
		BadRequest(c, err)
		return
	}

	order, err := h.fulfillment.GetOrder(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if order.UserID != userID {
		Forbidden(c, errors.New(errors.ErrForbidden, "not your order"))
		return
	}

	OK(c, order)
}

// Notify re-broadcasts the order summary to the admin recipients and re-runs
// referral attribution for the order.
func (h *OrderHandler) Notify(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := orderIDParam(c)
	if err != nil {
		BadRequest(c, err)
		return
	}

	order, err := h.fulfillment.NotifyOrder(ctx, id, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Int64("order_id", id).Msg("Order notify failed")
		HandleAppError(c, err)
		return
	}

	OK(c, order)
}

// UpdateStatusRequest is the status change request body.
type UpdateStatusRequest struct {
	Status store.OrderStatus `json:"status" binding:"required"`
}

// UpdateStatus moves an order along its lifecycle. Admin only.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := orderIDParam(c)
	if err != nil {
		BadRequest(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}

	order, err := h.fulfillment.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.logger.Warn().Err(err).Int64("order_id", id).Msg("Order status update rejected")
		HandleAppError(c, err)
		return
	}

	OK(c, order)
}
