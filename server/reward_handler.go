package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/auth"
	"github.com/telecart-dev/reward-engine/engine"
	"github.com/telecart-dev/reward-engine/errors"
)

// RewardHandler handles the wheel, slots, check-in, and reward history
// endpoints.
//
// Flow: HTTP Request -> RewardHandler -> engine -> store
//
// Cooldown rejections come back inside the result payload, not as HTTP
// errors: the caller shows the remaining wait.
type RewardHandler struct {
	draw    *engine.DrawEngine
	streak  *engine.StreakEngine
	rewards RewardHistory
	logger  zerolog.Logger
}

// NewRewardHandler creates a new reward handler
func NewRewardHandler(draw *engine.DrawEngine, streak *engine.StreakEngine, rewards RewardHistory, logger zerolog.Logger) *RewardHandler {
	return &RewardHandler{
		draw:    draw,
		streak:  streak,
		rewards: rewards,
		logger:  logger.With().Str("handler", "reward").Logger(),
	}
}

func extractUserID(c *gin.Context) (string, error) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return "", errors.New(errors.ErrUnauthorized, "user_id not found in context")
	}
	return userID, nil
}

// SpinWheel executes one wheel-of-fortune draw for the caller.
func (h *RewardHandler) SpinWheel(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	result, err := h.draw.SpinWheel(ctx, userID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Wheel spin failed")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}

// PlaySlots executes one slot machine round for the caller.
func (h *RewardHandler) PlaySlots(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	result, err := h.draw.PlaySlots(ctx, userID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Slots play failed")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}

// CheckIn records the caller's daily check-in and credits streak points.
func (h *RewardHandler) CheckIn(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	result, err := h.streak.CheckIn(ctx, userID, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Check-in failed")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}

// History returns the caller's recent reward ledger entries, newest first.
// The optional `limit` query parameter caps the page size.
func (h *RewardHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := extractUserID(c)
	if err != nil {
		Unauthorized(c, err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			BadRequest(c, errors.New(errors.ErrInvalidRequest, "limit must be a non-negative integer"))
			return
		}
	}

	entries, err := h.rewards.ListByUser(ctx, userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load reward history")
		HandleAppError(c, err)
		return
	}

	OK(c, entries)
}
