package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecart-dev/reward-engine/store"
)

// CheckInPointsPerDay scales streak length into awarded points.
const CheckInPointsPerDay = 10

// CheckInUserStore is the user state surface the streak engine needs.
// ApplyCheckIn is an optimistic conditional update keyed on the previously
// observed check-in timestamp.
type CheckInUserStore interface {
	Get(ctx context.Context, id string) (*store.User, error)
	ApplyCheckIn(ctx context.Context, userID string, prev *time.Time, now time.Time, streak int, points int64) (bool, error)
}

// StreakEngine runs the daily check-in counter. Adjacency is judged on
// calendar days, not rolling 24h windows: checking in at 23:59 and again at
// 00:01 the next day is a valid streak continuation.
type StreakEngine struct {
	users   CheckInUserStore
	rewards RewardLog
	logger  zerolog.Logger
}

// NewStreakEngine creates a streak engine
func NewStreakEngine(users CheckInUserStore, rewards RewardLog, logger zerolog.Logger) *StreakEngine {
	return &StreakEngine{
		users:   users,
		rewards: rewards,
		logger:  logger.With().Str("component", "streak-engine").Logger(),
	}
}

// CheckInResult is the outcome of a daily check-in attempt.
type CheckInResult struct {
	AlreadyCheckedIn bool  `json:"already_checked_in"`
	Streak           int   `json:"streak"`
	Points           int64 `json:"points,omitempty"`
}

// CheckIn records a daily check-in at the given instant. A second check-in on
// the same calendar day is rejected without touching the streak; a check-in
// exactly one calendar day after the last extends it; anything else resets it
// to 1. Points are streak*10, credited with the same guarded update.
func (e *StreakEngine) CheckIn(ctx context.Context, userID string, now time.Time) (*CheckInResult, error) {
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.LastCheckInTime != nil && sameCalendarDay(*user.LastCheckInTime, now) {
		return &CheckInResult{AlreadyCheckedIn: true, Streak: user.CheckInStreak}, nil
	}

	streak := 1
	if user.LastCheckInTime != nil && isPreviousCalendarDay(*user.LastCheckInTime, now) {
		streak = user.CheckInStreak + 1
	}
	points := int64(streak) * CheckInPointsPerDay

	ok, err := e.users.ApplyCheckIn(ctx, userID, user.LastCheckInTime, now, streak, points)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against a concurrent check-in; report the state the
		// winner left behind.
		fresh, err := e.users.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &CheckInResult{AlreadyCheckedIn: true, Streak: fresh.CheckInStreak}, nil
	}

	entry := &store.RewardEntry{
		UserID:    userID,
		Kind:      store.RewardDailyCheckIn,
		Amount:    points,
		CreatedAt: now,
	}
	if err := e.rewards.Append(ctx, entry); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("user_id", userID).
		Int("streak", streak).
		Int64("points", points).
		Msg("Daily check-in recorded")

	return &CheckInResult{Streak: streak, Points: points}, nil
}

// sameCalendarDay reports whether a and b fall on the same year/month/day.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// isPreviousCalendarDay reports whether `last` falls exactly on the calendar
// day before `now`.
func isPreviousCalendarDay(last, now time.Time) bool {
	return sameCalendarDay(last.AddDate(0, 0, 1), now)
}
