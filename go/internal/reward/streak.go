package reward

import (
	"time"

	"github.com/focusguard/focusguard/go/internal/models"
)

// CalendarDay returns midnight UTC of t's calendar day as observed in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextStreak computes the streak after a completion on today.
// lastCompleted and today are calendar days as returned by CalendarDay.
func NextStreak(lastCompleted *time.Time, today time.Time, current int) int {
	next, _ := StreakChange(lastCompleted, today, current)
	return next
}

// StreakChange is NextStreak plus the classification of what happened.
func StreakChange(lastCompleted *time.Time, today time.Time, current int) (int, models.StreakDelta) {
	if lastCompleted == nil || current <= 0 {
		return 1, models.StreakExtended
	}

	last := dayOnly(*lastCompleted)
	day := dayOnly(today)

	switch {
	case !day.After(last):
		// same day, or a completion stamped before the last one
		return current, models.StreakUnchanged
	case last.AddDate(0, 0, 1).Equal(day):
		return current + 1, models.StreakExtended
	default:
		return 1, models.StreakReset
	}
}

func dayOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StreakAsOf is the streak still alive on today. A streak whose last completed
// day is before yesterday is broken, even though the stored count only resets
// on the next completion.
func StreakAsOf(lastCompleted *time.Time, today time.Time, current int) int {
	if lastCompleted == nil || current <= 0 {
		return 0
	}
	if dayOnly(today).After(dayOnly(*lastCompleted).AddDate(0, 0, 1)) {
		return 0
	}
	return current
}
