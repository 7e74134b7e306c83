package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Countdown returns the time left until target, its display label and
// whether the countdown has completed. Labels look like "02:03:04", with a
// leading "Nd" segment when at least a day remains.
func Countdown(target, now time.Time) (time.Duration, string, bool) {
	remaining := target.Sub(now)
	if remaining <= 0 {
		return 0, "00:00:00", true
	}
	return remaining, FormatCountdown(remaining), false
}

// FormatCountdown renders d as [Nd:]HH:MM:SS, truncating to whole seconds.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	parts = append(parts,
		fmt.Sprintf("%02d", hours),
		fmt.Sprintf("%02d", minutes),
		fmt.Sprintf("%02d", seconds),
	)
	return strings.Join(parts, ":")
}
