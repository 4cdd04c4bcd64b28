package tracking

import (
	"fmt"
	"math"
	"time"
)

// SplitHours converts fractional hours to whole hours, minutes and seconds.
// The value is rounded to the nearest second once, then split with floor
// division, so repeated conversions never drift.
func SplitHours(hours float64) (h, m, s int) {
	if hours <= 0 || math.IsNaN(hours) {
		return 0, 0, 0
	}
	total := int(math.Round(hours * 3600))
	return total / 3600, (total % 3600) / 60, total % 60
}

// SplitDuration is SplitHours for a time.Duration, truncating sub-second remainders.
func SplitDuration(d time.Duration) (h, m, s int) {
	if d <= 0 {
		return 0, 0, 0
	}
	total := int(d / time.Second)
	return total / 3600, (total % 3600) / 60, total % 60
}

// FormatClock renders a duration as HH:MM:SS.
func FormatClock(d time.Duration) string {
	h, m, s := SplitDuration(d)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatHours renders fractional hours in a human-readable way, e.g. "2h 05m".
func FormatHours(hours float64) string {
	h, m, s := SplitHours(hours)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
