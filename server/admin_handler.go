package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/engine"
)

// AdminHandler handles the admin batch-job triggers. The same jobs also run
// on the background scheduler; these endpoints exist for manual runs.
type AdminHandler struct {
	rotator *engine.ScarcityRotator
	logger  zerolog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(rotator *engine.ScarcityRotator, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		rotator: rotator,
		logger:  logger.With().Str("handler", "admin").Logger(),
	}
}

// Rotate runs one flash-sale rotation immediately.
func (h *AdminHandler) Rotate(c *gin.Context) {
	ctx := c.Request.Context()

	report, err := h.rotator.Rotate(ctx, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual flash-sale rotation failed")
		HandleAppError(c, err)
		return
	}

	OK(c, report)
}

// CleanupPromos deactivates expired promo codes immediately.
func (h *AdminHandler) CleanupPromos(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.rotator.CleanupPromos(ctx, time.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual promo cleanup failed")
		HandleAppError(c, err)
		return
	}

	OK(c, gin.H{"deactivated": n})
}
