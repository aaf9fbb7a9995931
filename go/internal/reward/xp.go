package reward

// XPForFocus converts canonical focus seconds into experience points.
// Sessions shorter than a minute still earn one minute.
func XPForFocus(focusSeconds, xpPerMinute int) int {
	minutes := focusSeconds / 60
	if minutes < 1 {
		minutes = 1
	}
	return minutes * xpPerMinute
}

// LevelForXP derives the level from cumulative XP.
func LevelForXP(totalXP, xpPerLevel int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/xpPerLevel + 1
}
