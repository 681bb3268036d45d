package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// FormatBytes converts bytes to a human-readable binary size.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		bytes = 0
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate formats a bytes-per-second rate.
func FormatRate(rate float64) string {
	if rate < 0 {
		rate = 0
	}
	return FormatBytes(int64(rate)) + "/s"
}

// FormatETA renders mm:ss, or hh:mm:ss past one hour. Unknown or absurd
// values render as dashes.
func FormatETA(d time.Duration, known bool) string {
	if !known || d < 0 {
		return "--:--"
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h == 0 {
		return fmt.Sprintf("%02d:%02d", m, s)
	}
	if h < 100 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return "--:--"
}

// fitLeft pads or truncates s to exactly width columns, dropping the head so
// file extensions stay visible.
func fitLeft(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return runewidth.FillRight(s, width)
	}
	if width <= len(ellipsis) {
		return runewidth.FillRight(runewidth.Truncate(s, width, ""), width)
	}
	runes := []rune(s)
	budget := width - len(ellipsis)
	used, start := 0, len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if used+w > budget {
			break
		}
		used += w
		start--
	}
	return runewidth.FillRight(ellipsis+string(runes[start:]), width)
}

// fitRight pads or truncates s to exactly width columns, dropping the tail.
func fitRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, ellipsis), width)
}

func fillBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := min(int(fraction*float64(width)), width)
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}
