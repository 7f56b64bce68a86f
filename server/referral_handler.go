package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/auth"
	"github.com/telecart-dev/reward-engine/engine"
	"github.com/telecart-dev/reward-engine/errors"
)

// ReferralHandler records referral links. The bot gateway calls Attach when a
// user first opens the store through an invite link.
type ReferralHandler struct {
	referrals *engine.ReferralAttributor
	logger    zerolog.Logger
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referrals *engine.ReferralAttributor, logger zerolog.Logger) *ReferralHandler {
	return &ReferralHandler{
		referrals: referrals,
		logger:    logger.With().Str("handler", "referral").Logger(),
	}
}

// AttachReferralRequest is the referral link request body.
type AttachReferralRequest struct {
	ReferrerID string `json:"referrer_id" binding:"required"`
	Username   string `json:"username,omitempty"`
}

// Attach links the caller to their inviter. A caller who already has a
// referrer keeps it; that is a normal 200 response with linked=false.
func (h *ReferralHandler) Attach(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	var req AttachReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.Wrap(err, errors.ErrInvalidRequest, "invalid request body"))
		return
	}
	if req.Username == "" {
		req.Username, _ = auth.GetUsername(c)
	}

	result, err := h.referrals.Attach(ctx, userID, req.Username, req.ReferrerID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Referral attach rejected")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}
