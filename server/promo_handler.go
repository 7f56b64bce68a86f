package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/engine"
	"github.com/telecart-dev/reward-engine/errors"
)

// PromoHandler handles promo code validation previews. Validation never
// consumes the usage counter; that happens at order placement.
type PromoHandler struct {
	promos *engine.PromoValidator
	logger zerolog.Logger
}

// NewPromoHandler creates a new promo handler
func NewPromoHandler(promos *engine.PromoValidator, logger zerolog.Logger) *PromoHandler {
	return &PromoHandler{
		promos: promos,
		logger: logger.With().Str("handler", "promo").Logger(),
	}
}

// ValidatePromoRequest is the validation request body.
type ValidatePromoRequest struct {
	Code      string `json:"code" binding:"required"`
	CartTotal int64  `json:"cart_total"`
}

// Validate previews a promo code against a cart total. Rejections are a
// normal 200 response with valid=false and a reason, not an HTTP error.
func (h *PromoHandler) Validate(c *gin.Context) {
	ctx := c.Request.Context()

	var req ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}
	if req.CartTotal < 0 {
		BadRequest(c, errors.New(errors.ErrInvalidRequest, "cart_total must be non-negative"))
		return
	}

	result, err := h.promos.Validate(ctx, req.Code, req.CartTotal, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("code", req.Code).Msg("Promo validation failed")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}
