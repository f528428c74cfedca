// Package report renders benchmark results for people and for other programs.
//
// Console prints live progress and per-level tables to a terminal. Write
// exports a whole sweep as Markdown, JSON or YAML.
package report

import (
	"fmt"
	"time"
)

// FormatDuration renders d with a unit suited to its magnitude.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	// Format based on magnitude.
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// formatSeconds renders a duration already expressed in seconds.
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.4fs", s)
}
