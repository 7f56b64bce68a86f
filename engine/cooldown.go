package engine

import "time"

// cooldownRemaining reports whether a draw is still inside its cooldown
// window and, if so, the remaining wait rounded up to whole hours.
func cooldownRemaining(now time.Time, last *time.Time, window time.Duration) (int, bool) {
	if last == nil {
		return 0, false
	}
	elapsed := now.Sub(*last)
	if elapsed >= window {
		return 0, false
	}
	remaining := window - elapsed
	hours := int((remaining + time.Hour - 1) / time.Hour)
	return hours, true
}
