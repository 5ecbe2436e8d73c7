// Package ui collects small formatting and I/O helpers shared by command
// output, independent of any particular terminal backend.
package ui

import "fmt"

// FormatBytes renders c as a human-readable size using binary (1024-based)
// units, matching the precision a progress display needs.
func FormatBytes(c uint64) string {
	b := float64(c)

	switch {
	case c >= 1<<40:
		return fmt.Sprintf("%.3f TiB", b/(1<<40))
	case c >= 1<<30:
		return fmt.Sprintf("%.3f GiB", b/(1<<30))
	case c >= 1<<20:
		return fmt.Sprintf("%.3f MiB", b/(1<<20))
	case c >= 1<<10:
		return fmt.Sprintf("%.3f KiB", b/(1<<10))
	default:
		return fmt.Sprintf("%d B", c)
	}
}

// FormatPercent renders numerator/denominator as a percentage, clamped to
// 100% and reporting 0% for a zero denominator instead of dividing by it.
func FormatPercent(numerator, denominator uint64) string {
	if denominator == 0 {
		return "0.00%"
	}

	percent := 100.0 * float64(numerator) / float64(denominator)
	if percent > 100 {
		percent = 100
	}

	return fmt.Sprintf("%.2f%%", percent)
}
