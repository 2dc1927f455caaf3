package ui

import (
	"fmt"
	"time"
)

func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "N/A"
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatETA estimates the remaining time from the fraction done so far.
func FormatETA(elapsed time.Duration, fraction float64) string {
	if fraction <= 0 || fraction >= 1 || elapsed <= 0 {
		return "N/A"
	}
	remaining := time.Duration(float64(elapsed) * (1 - fraction) / fraction)
	return remaining.Truncate(time.Second).String()
}
