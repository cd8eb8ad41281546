// Package format provides shared formatting utilities for human-readable output.
package format

import (
	"fmt"
	"strings"
	"time"
)

// Duration formats a duration for human-readable output.
// Handles microseconds, milliseconds, seconds, and minutes.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}

// Score renders a validator score against its threshold, e.g. "0.912 ≥ 0.80".
func Score(score, threshold float64) string {
	op := "<"
	if score >= threshold {
		op = "≥"
	}

	return fmt.Sprintf("%.3f %s %.2f", score, op, threshold)
}

// Truncate collapses whitespace runs to single spaces and cuts s to at most
// n runes, ending with "..." when there is room for it.
func Truncate(s string, n int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if n <= 0 {
		return ""
	}

	if len(runes) <= n {
		return string(runes)
	}

	if n <= 3 {
		return string(runes[:n])
	}

	return string(runes[:n-3]) + "..."
}
