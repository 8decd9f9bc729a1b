package ui

import (
	"fmt"
	"math"
	"time"
)

// etaMinuteThreshold is the remaining time above which ETAs switch to minutes.
const etaMinuteThreshold = 90 * time.Second

// FormatETA renders a remaining-time estimate, e.g. "~ 42 sec. left" or,
// above 90 seconds, "~ 3 min. left" with minutes rounded up.
// Zero or negative durations render as "".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d > etaMinuteThreshold {
		return fmt.Sprintf("~ %d min. left", int(math.Ceil(d.Minutes())))
	}
	return fmt.Sprintf("~ %.0f sec. left", d.Seconds())
}

// FormatRunTime renders the final run line, e.g. "12 sec. for 340 files".
func FormatRunTime(d time.Duration, files int) string {
	return fmt.Sprintf("%d sec. for %d files", int(math.Round(d.Seconds())), files)
}

// formatDuration formats a duration for the TUI.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		m, s := int(d.Minutes()), int(d.Seconds())%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
